package integrity

// rules.go holds the fixed enumerations and thresholds used by the validators
// and the scanner.

// CategorySchool is the customer category for schools.
const CategorySchool = "Skola"

// Customer type groups.
const (
	TypeGroupB2C = "B2C"
	TypeGroupB2B = "B2B"
	TypeGroupB2G = "B2G"
)

// EmailReuseThreshold is the number of rows sharing one email address that is
// still considered normal within a batch. Above it every sharing row gets a warning.
const EmailReuseThreshold = 5

// CustomerCategories is the fixed customer category enumeration.
var CustomerCategories = []string{
	CategorySchool,
	"Kommun",
	"Företag",
	"Förening",
	"Myndighet",
	"Privatperson",
	"Återförsäljare",
	"Övrigt",
}

// CustomerTypeGroups is the allowed set for CustomerRow.CustomerTypeGroup.
var CustomerTypeGroups = []string{TypeGroupB2C, TypeGroupB2B, TypeGroupB2G}

// ContactTypes is the fixed contact type enumeration.
var ContactTypes = []string{
	"Lärare",
	"Rektor",
	"Inköpare",
	"Ekonomi",
	"Kontaktperson",
	"Privatperson",
	"Övrigt",
}

var (
	customerCategorySet  = toSet(CustomerCategories)
	customerTypeGroupSet = toSet(CustomerTypeGroups)
	contactTypeSet       = toSet(ContactTypes)
)

// stringSet is a set of exact strings.
type stringSet map[string]struct{}

func toSet(values []string) stringSet {
	s := make(stringSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

func (s stringSet) has(v string) bool {
	_, ok := s[v]
	return ok
}

func (s stringSet) add(v string) {
	s[v] = struct{}{}
}
