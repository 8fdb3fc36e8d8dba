package enums

import "fmt"

type Species string

const (
	SpeciesDog Species = "dog"
	SpeciesCat Species = "cat"
)

func (s Species) IsValid() bool {
	return s == SpeciesDog || s == SpeciesCat
}

func ParseSpecies(value string) (Species, error) {
	s := Species(value)
	if !s.IsValid() {
		return "", fmt.Errorf("invalid species %q", value)
	}
	return s, nil
}
