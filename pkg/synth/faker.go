package synth

import (
	"fmt"
	mathrand "math/rand/v2"
	"strings"

	"github.com/mockforge/mockforge/pkg/spec"
)

// Faker generates realistic pseudo-random data from a seeded PRNG, so the
// same seed yields the same body on every request.
type Faker struct {
	rng *mathrand.Rand
}

// NewFaker creates a Faker seeded with the given value.
func NewFaker(seed uint64) *Faker {
	return &Faker{rng: mathrand.New(mathrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

var (
	fakerFirstNames = []string{
		"Ada", "Grace", "Alan", "Edsger", "Barbara", "Donald",
		"Margaret", "Dennis", "Ken", "Radia", "Leslie", "Frances",
	}
	fakerLastNames = []string{
		"Lovelace", "Hopper", "Turing", "Dijkstra", "Liskov", "Knuth",
		"Hamilton", "Ritchie", "Thompson", "Perlman", "Lamport", "Allen",
	}
	fakerDomains = []string{
		"example.com", "example.org", "example.net", "test.dev",
	}
	fakerWords = []string{
		"alpha", "bravo", "cedar", "delta", "ember", "fjord",
		"grove", "harbor", "indigo", "juniper", "koala", "lumen",
	}
	fakerCities = []string{
		"Springfield", "Riverton", "Lakewood", "Fairview", "Oakdale", "Brookside",
	}
	fakerStreets = []string{
		"Maple Street", "Oak Avenue", "Cedar Lane", "Elm Drive", "Pine Court",
	}
)

func (f *Faker) pick(list []string) string {
	return list[f.rng.IntN(len(list))]
}

// FirstName returns a random first name.
func (f *Faker) FirstName() string { return f.pick(fakerFirstNames) }

// LastName returns a random last name.
func (f *Faker) LastName() string { return f.pick(fakerLastNames) }

// FullName returns a random full name.
func (f *Faker) FullName() string { return f.FirstName() + " " + f.LastName() }

// Email returns a random email address.
func (f *Faker) Email() string {
	return strings.ToLower(f.FirstName()) + "." + strings.ToLower(f.LastName()) + "@" + f.pick(fakerDomains)
}

// UUID returns a random version-4 UUID drawn from the seeded PRNG.
func (f *Faker) UUID() string {
	var b [16]byte
	for i := range b {
		b[i] = byte(f.rng.IntN(256))
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}

// Date returns a random date in 2024.
func (f *Faker) Date() string {
	return fmt.Sprintf("2024-%02d-%02d", 1+f.rng.IntN(12), 1+f.rng.IntN(28))
}

// DateTime returns a random RFC 3339 timestamp in 2024.
func (f *Faker) DateTime() string {
	return fmt.Sprintf("%sT%02d:%02d:%02dZ", f.Date(), f.rng.IntN(24), f.rng.IntN(60), f.rng.IntN(60))
}

// URI returns a random https URI.
func (f *Faker) URI() string {
	return "https://" + f.pick(fakerDomains) + "/" + f.pick(fakerWords)
}

// IPv4 returns a random documentation-range IPv4 address.
func (f *Faker) IPv4() string {
	return fmt.Sprintf("192.0.2.%d", 1+f.rng.IntN(254))
}

// IPv6 returns a random documentation-range IPv6 address.
func (f *Faker) IPv6() string {
	return fmt.Sprintf("2001:db8::%x", 1+f.rng.IntN(0xffff))
}

// Word returns a random word.
func (f *Faker) Word() string { return f.pick(fakerWords) }

// Sentence returns a short random sentence.
func (f *Faker) Sentence() string {
	words := make([]string, 3+f.rng.IntN(4))
	for i := range words {
		words[i] = f.pick(fakerWords)
	}
	s := strings.Join(words, " ")
	return strings.ToUpper(s[:1]) + s[1:] + "."
}

// FromSchema generates a value satisfying the schema with faker data. The
// walk follows the deterministic generator except that declared defaults
// are not used and arrays hold one to three items (within minItems and
// maxItems); leaf values and enum picks are random.
func (f *Faker) FromSchema(s *spec.Schema) any {
	return f.fromSchema(s, "")
}

func (f *Faker) fromSchema(s *spec.Schema, name string) any {
	if s == nil {
		return nil
	}
	if s.Example != nil {
		return s.Example
	}
	if len(s.Enum) > 0 {
		return s.Enum[f.rng.IntN(len(s.Enum))]
	}

	if len(s.AllOf) > 0 {
		merged := make(map[string]any)
		for _, variant := range s.AllOf {
			if obj, ok := f.fromSchema(variant, name).(map[string]any); ok {
				for k, v := range obj {
					if _, exists := merged[k]; !exists {
						merged[k] = v
					}
				}
			}
		}
		return merged
	}
	if len(s.OneOf) > 0 {
		return f.fromSchema(s.OneOf[0], name)
	}
	if len(s.AnyOf) > 0 {
		return f.fromSchema(s.AnyOf[0], name)
	}

	switch effectiveType(s) {
	case "object":
		obj := make(map[string]any, len(s.Properties))
		for _, prop := range s.PropertyNames() {
			obj[prop] = f.fromSchema(s.Properties[prop], prop)
		}
		return obj
	case "array":
		length := 1 + f.rng.IntN(3)
		if s.MinItems != nil && length < *s.MinItems {
			length = *s.MinItems
		}
		if s.MaxItems != nil && length > *s.MaxItems {
			length = *s.MaxItems
		}
		arr := make([]any, length)
		for i := range arr {
			arr[i] = f.fromSchema(s.Items, name)
		}
		return arr
	case "string":
		return f.stringValue(s, name)
	case "integer":
		return f.intValue(s)
	case "number":
		return f.numberValue(s)
	case "boolean":
		return f.rng.IntN(2) == 1
	default:
		return map[string]any{}
	}
}

// stringValue picks by format first, then by property-name heuristics.
func (f *Faker) stringValue(s *spec.Schema, name string) string {
	switch s.Format {
	case "email":
		return f.Email()
	case "uuid":
		return f.UUID()
	case "date":
		return f.Date()
	case "date-time":
		return f.DateTime()
	case "uri", "url":
		return f.URI()
	case "ipv4":
		return f.IPv4()
	case "ipv6":
		return f.IPv6()
	case "hostname":
		return f.pick(fakerDomains)
	}

	if s.Pattern != "" {
		if lit, ok := literalFromPattern(s.Pattern); ok {
			return lit
		}
	}

	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "email"):
		return f.Email()
	case strings.Contains(lower, "firstname") || lower == "first_name":
		return f.FirstName()
	case strings.Contains(lower, "lastname") || lower == "last_name":
		return f.LastName()
	case strings.Contains(lower, "name"):
		return f.FullName()
	case strings.Contains(lower, "city"):
		return f.pick(fakerCities)
	case strings.Contains(lower, "street") || strings.Contains(lower, "address"):
		return fmt.Sprintf("%d %s", 1+f.rng.IntN(999), f.pick(fakerStreets))
	case strings.Contains(lower, "url") || strings.Contains(lower, "link"):
		return f.URI()
	case strings.Contains(lower, "description") || strings.Contains(lower, "summary"):
		return f.Sentence()
	case strings.HasSuffix(lower, "id"):
		return f.UUID()
	}

	value := f.Word()
	if s.MinLength != nil && len(value) < *s.MinLength {
		value += strings.Repeat("x", *s.MinLength-len(value))
	}
	if s.MaxLength != nil && len(value) > *s.MaxLength {
		value = value[:*s.MaxLength]
	}
	return value
}

func (f *Faker) intValue(s *spec.Schema) int64 {
	lo, hi := int64(1), int64(1000)
	if s.Minimum != nil {
		lo = int64(*s.Minimum)
	}
	if s.Maximum != nil {
		hi = int64(*s.Maximum)
	}
	if hi <= lo {
		return lo
	}
	return lo + f.rng.Int64N(hi-lo+1)
}

func (f *Faker) numberValue(s *spec.Schema) float64 {
	lo, hi := float64(0), float64(1000)
	if s.Minimum != nil {
		lo = *s.Minimum
	}
	if s.Maximum != nil {
		hi = *s.Maximum
	}
	if hi <= lo {
		return lo
	}
	return lo + f.rng.Float64()*(hi-lo)
}
