package collaborator

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"hash/fnv"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Proton-105/astro-bot/internal/domain"
)

//go:embed templates.yaml
var templatesYAML []byte

type contentTemplate struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

type compiledTemplate struct {
	title *template.Template
	body  *template.Template
}

// TemplateContent renders readings from embedded text templates. It stands in
// for the real astrology engines.
type TemplateContent struct {
	templates map[string]compiledTemplate
	now       func() time.Time
}

func NewTemplateContent(now func() time.Time) (*TemplateContent, error) {
	if now == nil {
		now = time.Now
	}

	var raw map[string]contentTemplate
	if err := yaml.Unmarshal(templatesYAML, &raw); err != nil {
		return nil, fmt.Errorf("parse content templates: %w", err)
	}

	funcs := template.FuncMap{"inc": func(i int) int { return i + 1 }}
	compiled := make(map[string]compiledTemplate, len(raw))
	for kind, tpl := range raw {
		title, err := template.New(kind + ".title").Funcs(funcs).Parse(tpl.Title)
		if err != nil {
			return nil, fmt.Errorf("parse %s title: %w", kind, err)
		}
		body, err := template.New(kind + ".body").Funcs(funcs).Option("missingkey=zero").Parse(tpl.Body)
		if err != nil {
			return nil, fmt.Errorf("parse %s body: %w", kind, err)
		}
		compiled[kind] = compiledTemplate{title: title, body: body}
	}

	return &TemplateContent{templates: compiled, now: now}, nil
}

// Supports reports whether kind (with or without an ":arg" suffix) can be rendered.
func (c *TemplateContent) Supports(kind string) bool {
	base, _, _ := strings.Cut(kind, ":")
	_, ok := c.templates[base]
	return ok
}

func (c *TemplateContent) Generate(ctx context.Context, kind string, profile *domain.UserProfile, params map[string]string) (*Rendered, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base, arg, _ := strings.Cut(kind, ":")
	tpl, ok := c.templates[base]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}

	data := newReadingData(profile, arg, params, c.now())

	var title, body bytes.Buffer
	if err := tpl.title.Execute(&title, data); err != nil {
		return nil, fmt.Errorf("render %s title: %w", kind, err)
	}
	if err := tpl.body.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("render %s body: %w", kind, err)
	}

	return &Rendered{
		Kind:        kind,
		Title:       strings.TrimSpace(title.String()),
		Body:        strings.TrimSpace(body.String()),
		GeneratedAt: c.now(),
	}, nil
}

var (
	signs = []struct {
		name    string
		element string
		month   time.Month
		day     int
	}{
		{"Capricorn", "earth", time.January, 19},
		{"Aquarius", "air", time.February, 18},
		{"Pisces", "water", time.March, 20},
		{"Aries", "fire", time.April, 19},
		{"Taurus", "earth", time.May, 20},
		{"Gemini", "air", time.June, 20},
		{"Cancer", "water", time.July, 22},
		{"Leo", "fire", time.August, 22},
		{"Virgo", "earth", time.September, 22},
		{"Libra", "air", time.October, 22},
		{"Scorpio", "water", time.November, 21},
		{"Sagittarius", "fire", time.December, 21},
		{"Capricorn", "earth", time.December, 31},
	}
	majorArcana = []string{
		"The Fool", "The Magician", "The High Priestess", "The Empress", "The Emperor",
		"The Hierophant", "The Lovers", "The Chariot", "Strength", "The Hermit",
		"Wheel of Fortune", "Justice", "The Hanged Man", "Death", "Temperance",
		"The Devil", "The Tower", "The Star", "The Moon", "The Sun", "Judgement", "The World",
	}
	elderFuthark = []string{
		"Fehu", "Uruz", "Thurisaz", "Ansuz", "Raidho", "Kenaz", "Gebo", "Wunjo",
		"Hagalaz", "Naudhiz", "Isa", "Jera", "Eihwaz", "Perthro", "Algiz", "Sowilo",
		"Tiwaz", "Berkano", "Ehwaz", "Mannaz", "Laguz", "Ingwaz", "Dagaz", "Othala",
	}
	spreadSizes = map[string]int{"single": 1, "three": 3, "celtic_cross": 10}
)

func sunSign(month time.Month, day int) (string, string) {
	for _, s := range signs {
		if month < s.month || (month == s.month && day <= s.day) {
			return s.name, s.element
		}
	}
	return "Capricorn", "earth"
}

func elementOf(sign string) string {
	for _, s := range signs {
		if strings.EqualFold(s.name, sign) {
			return s.element
		}
	}
	return ""
}

// reduce sums digits until a single digit remains, keeping master numbers 11, 22 and 33.
func reduce(n int) int {
	for n > 9 && n != 11 && n != 22 && n != 33 {
		sum := 0
		for n > 0 {
			sum += n % 10
			n /= 10
		}
		n = sum
	}
	return n
}

func digitSum(s string) int {
	sum := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			sum += int(r - '0')
		case r >= 'a' && r <= 'z':
			sum += int(r-'a')%9 + 1
		case r >= 'A' && r <= 'Z':
			sum += int(r-'A')%9 + 1
		}
	}
	return sum
}

type readingData struct {
	Name         string
	Date         string
	Time         string
	Place        string
	Timezone     string
	Today        string
	ThisYear     int
	Age          int
	BirthDay     int
	SunSign      string
	Element      string
	LifePath     int
	PersonalYear int
	Arg          string
	ArgTitle     string
	ArgElement   string
	Cards        []string
	Hexagram     int
	Rune         string
	NameNumber   int
	PartnerSign  string
	ElementMatch string
	params       map[string]string
}

// Param returns a flow parameter by name.
func (d readingData) Param(key string) string {
	return d.params[key]
}

func newReadingData(p *domain.UserProfile, arg string, params map[string]string, now time.Time) readingData {
	d := readingData{
		Name:     "Friend",
		Today:    now.Format("2 Jan 2006"),
		ThisYear: now.Year(),
		Arg:      arg,
		params:   params,
	}

	seed := fnv.New32a()
	fmt.Fprintf(seed, "%s|%s|%s", now.Format("2006-01-02"), arg, params["name"])

	if p != nil {
		fmt.Fprint(seed, p.Phone)
		if p.Name != "" {
			d.Name = p.Name
		}
		d.Place = p.BirthPlace
		d.Timezone = p.Timezone
		if p.BirthTime != nil {
			d.Time = p.BirthTime.String()
		}
		if p.BirthDate != nil {
			b := *p.BirthDate
			d.Date = b.Format("2 Jan 2006")
			d.BirthDay = b.Day()
			d.SunSign, d.Element = sunSign(b.Month(), b.Day())
			d.LifePath = reduce(digitSum(b.Format("20060102")))
			d.PersonalYear = reduce(b.Day() + int(b.Month()) + digitSum(fmt.Sprint(now.Year())))
			d.Age = now.Year() - b.Year()
			if now.YearDay() < b.YearDay() {
				d.Age--
			}
		}
	}

	if arg != "" {
		d.ArgTitle = strings.ToUpper(arg[:1]) + arg[1:]
		d.ArgElement = elementOf(arg)
	}

	h := seed.Sum32()
	count := spreadSizes[arg]
	if count == 0 {
		count = 1
	}
	for i := 0; i < count; i++ {
		d.Cards = append(d.Cards, majorArcana[(int(h)+i*7)%len(majorArcana)])
	}
	d.Hexagram = int(h%64) + 1
	d.Rune = elderFuthark[int(h)%len(elderFuthark)]

	if name := params["name"]; name != "" {
		d.NameNumber = reduce(digitSum(name))
	}
	if raw := params["partner_date"]; raw != "" {
		if pd, err := time.Parse("2006-01-02", raw); err == nil {
			d.PartnerSign, _ = sunSign(pd.Month(), pd.Day())
			switch partner := elementOf(d.PartnerSign); {
			case d.Element == "":
				d.ElementMatch = "add your birth data for a full reading"
			case partner == d.Element:
				d.ElementMatch = "same element, easy understanding"
			case compatibleElements(d.Element, partner):
				d.ElementMatch = "complementary elements"
			default:
				d.ElementMatch = "different rhythms that need patience"
			}
		}
	}

	return d
}

func compatibleElements(a, b string) bool {
	pair := a + "/" + b
	switch pair {
	case "fire/air", "air/fire", "earth/water", "water/earth":
		return true
	}
	return false
}
