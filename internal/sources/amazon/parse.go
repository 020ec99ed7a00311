package amazon

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

var (
	ErrCaptcha = errors.New("captcha or robot check page")
	ErrNoTitle = errors.New("product title not found")
	ErrNoPrice = errors.New("product price not found")
)

var (
	asinPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/dp/([A-Z0-9]{10})`),
		regexp.MustCompile(`/gp/product/([A-Z0-9]{10})`),
		regexp.MustCompile(`/ASIN/([A-Z0-9]{10})`),
	}
	// first number in the text, thousands separators allowed
	priceRegex = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

	titleSelectors = []string{"#productTitle", "#title", ".product-title-word-break"}
	priceSelectors = []string{
		".a-price .a-offscreen",
		"#priceblock_ourprice",
		"#priceblock_dealprice",
		".a-price",
	}
	robotMarkers = []string{"captcha", "robot check", "not a robot"}
)

// Product is what one product page yields.
type Product struct {
	ASIN         string
	Title        string
	Price        decimal.Decimal
	Availability string
}

// ParseProduct extracts the title and price from a product page.
func ParseProduct(doc *goquery.Selection, pageURL string) (Product, error) {
	lower := strings.ToLower(doc.Text())
	for _, marker := range robotMarkers {
		if strings.Contains(lower, marker) {
			return Product{}, ErrCaptcha
		}
	}

	title := firstText(doc, titleSelectors)
	if title == "" {
		return Product{}, ErrNoTitle
	}
	priceText := firstText(doc, priceSelectors)
	if priceText == "" {
		return Product{}, ErrNoPrice
	}
	price, err := ParsePrice(priceText)
	if err != nil {
		return Product{}, err
	}

	availability := strings.TrimSpace(doc.Find("#availability").First().Text())
	if availability == "" {
		availability = "In Stock"
	}
	return Product{
		ASIN:         ExtractASIN(pageURL),
		Title:        title,
		Price:        price,
		Availability: availability,
	}, nil
}

// ParsePrice turns display text such as "$1,299.99" or "£19.99" into a decimal.
func ParsePrice(text string) (decimal.Decimal, error) {
	match := priceRegex.FindString(text)
	if match == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: no number in %q", ErrNoPrice, text)
	}
	price, err := decimal.NewFromString(strings.ReplaceAll(match, ",", ""))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse price %q: %w", text, err)
	}
	return price, nil
}

// ExtractASIN returns the product id in url, or its last path segment when no
// known pattern matches.
func ExtractASIN(url string) string {
	for _, re := range asinPatterns {
		if m := re.FindStringSubmatch(url); len(m) > 1 {
			return m[1]
		}
	}
	parts := strings.Split(url, "/")
	if last := parts[len(parts)-1]; last != "" {
		return last
	}
	return "unknown"
}

func firstText(doc *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}
