package registrations

import (
	"fmt"

	"github.com/mutirao/castracao-backend/pkg/enums"
)

var statusLabels = map[enums.RegistrationStatus]string{
	enums.RegistrationStatusAwaitingService: "aguardando atendimento",
	enums.RegistrationStatusScheduled:       "agendado",
	enums.RegistrationStatusWaitlisted:      "lista de espera",
	enums.RegistrationStatusAttended:        "atendido",
	enums.RegistrationStatusCanceled:        "cancelado",
	enums.RegistrationStatusNoShow:          "não compareceu",
}

func confirmationBody(tutor, animal string) string {
	return fmt.Sprintf("Olá, %s! O cadastro de %s no mutirão de castração foi recebido. Aguarde nosso contato para o agendamento.", tutor, animal)
}

func waitlistBody(tutor, animal, city string) string {
	return fmt.Sprintf("Olá, %s! As vagas de %s estão esgotadas e %s entrou na lista de espera. Avisaremos se uma vaga abrir.", tutor, city, animal)
}

func statusChangedBody(tutor, animal string, status enums.RegistrationStatus) string {
	label, ok := statusLabels[status]
	if !ok {
		label = status.String()
	}
	return fmt.Sprintf("Olá, %s! O cadastro de %s foi atualizado para: %s.", tutor, animal, label)
}

func promotedBody(tutor, animal string) string {
	return fmt.Sprintf("Boa notícia, %s! Abriu uma vaga e %s saiu da lista de espera. Aguarde nosso contato para o agendamento.", tutor, animal)
}
