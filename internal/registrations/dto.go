package registrations

import (
	"github.com/mutirao/castracao-backend/internal/capacity"
	"github.com/mutirao/castracao-backend/pkg/db/models"
	"github.com/mutirao/castracao-backend/pkg/enums"
)

// RegisterInput is a public sign-up for one animal.
type RegisterInput struct {
	TutorName  string
	Phone      string
	Email      string
	City       string
	AnimalName string
	Species    enums.Species
	Notes      string
}

type RegisterResult struct {
	Registration models.Registration `json:"registration"`
	Waitlisted   bool                `json:"waitlisted"`
	CityManaged  bool                `json:"city_managed"`
	Capacity     *capacity.Bucket    `json:"capacity,omitempty"`
}

type UpdateStatusInput struct {
	Status enums.RegistrationStatus
	Note   string
}

type UpdateStatusResult struct {
	Registration models.Registration  `json:"registration"`
	Promoted     *models.Registration `json:"promoted,omitempty"`
}
