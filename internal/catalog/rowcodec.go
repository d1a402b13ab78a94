// Package catalog turns the spreadsheet export into an ordered, validated
// list of gifts.
package catalog

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode"
	"unicode/utf16"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Kerhoff/giftlist/internal/models"
)

// Spreadsheet column layout.
const (
	colTitle = iota
	colProductURL
	colImageURL
	colOrder
	colVisible
	colReserved
	colReservedBy
)

// ParseRow decodes one spreadsheet row found at the given 0-based line
// position. It returns nil when the title, product URL or image URL cell is
// empty. URL validity is not checked here.
func ParseRow(cells []string, position int) *models.Gift {
	cell := func(i int) (string, bool) {
		if i >= len(cells) {
			return "", false
		}
		return strings.TrimSpace(cells[i]), true
	}

	title, _ := cell(colTitle)
	productURL, _ := cell(colProductURL)
	imageURL, _ := cell(colImageURL)
	if title == "" || productURL == "" || imageURL == "" {
		return nil
	}

	gift := &models.Gift{
		ID:         GiftID(title),
		Title:      title,
		ProductURL: productURL,
		ImageURL:   imageURL,
		Order:      models.DefaultOrder,
		Visible:    true,
		RowIndex:   position + 1,
		Position:   position,
	}

	if raw, ok := cell(colOrder); ok {
		if n, ok := leadingInt(raw); ok && n != 0 {
			gift.Order = n
		}
	}
	if raw, ok := cell(colVisible); ok && raw != "" {
		gift.Visible = IsTruthy(raw)
	}
	if raw, ok := cell(colReserved); ok {
		gift.Reserved = IsTruthy(raw)
		gift.ReservationColumns = true
	}
	if raw, ok := cell(colReservedBy); ok {
		gift.ReservedBy = raw
	}

	return gift
}

// IsTruthy reports whether a yes/no cell holds one of the accepted "yes"
// tokens (Sim, yes, s), ignoring case and surrounding space.
func IsTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sim", "yes", "s":
		return true
	}
	return false
}

// leadingInt parses the optional sign and digits at the start of s.
func leadingInt(s string) (int, bool) {
	i, neg := 0, false
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		neg = s[i] == '-'
		i++
	}
	start, n := i, 0
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
	}
	if i == start {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// GiftID derives the stable identifier of a gift from its title:
// "gift-<slug>-<hash>". The slug folds diacritics and hyphenates everything
// outside [a-z0-9]; the hash is computed over the original title, so titles
// sharing a slug still get distinct ids.
func GiftID(title string) string {
	folded, _, err := transform.String(stripMarks, title)
	if err != nil {
		folded = title
	}
	folded = strings.ToLower(folded)

	var sb strings.Builder
	dash := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash {
			sb.WriteByte('-')
			dash = true
		}
	}
	slug := strings.Trim(sb.String(), "-")

	return fmt.Sprintf("gift-%s-%d", slug, titleHash(title))
}

// titleHash is the 31-multiplier string hash over UTF-16 code units with
// 32-bit wraparound, returned as an absolute value.
func titleHash(title string) int64 {
	var h int32
	for _, cu := range utf16.Encode([]rune(title)) {
		h = h*31 + int32(cu)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}

// IsValidURL reports whether s is an absolute http or https URL.
func IsValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// SplitCSVLine splits one line on commas, treating quoted sections as opaque.
// Quote characters toggle the quoted state and are dropped.
func SplitCSVLine(line string) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	return append(fields, current.String())
}

// ParseResult is the outcome of decoding a whole export.
type ParseResult struct {
	Gifts   []models.Gift
	Hidden  int
	Invalid int
}

// ParseCSV decodes a delimited export. The first line is the header. Only
// visible rows with valid product and image URLs are kept, sorted by Order
// with ties kept in row order.
func ParseCSV(text string) ParseResult {
	var res ParseResult
	lines := strings.Split(text, "\n")
	for i := 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		gift := ParseRow(SplitCSVLine(line), i)
		if gift == nil {
			res.Invalid++
			continue
		}
		if !gift.Visible {
			res.Hidden++
			continue
		}
		if !IsValidURL(gift.ProductURL) || !IsValidURL(gift.ImageURL) {
			res.Invalid++
			continue
		}
		res.Gifts = append(res.Gifts, *gift)
	}
	SortGifts(res.Gifts)
	return res
}

// SortGifts sorts in place by Order, then original position.
func SortGifts(gifts []models.Gift) {
	sort.SliceStable(gifts, func(i, j int) bool {
		return gifts[i].Less(gifts[j])
	})
}
