package model

// TicketStatus is the lifecycle state of an incident ticket. The status
// is owned by the backend — the client only ever reads it. The wire
// values are the backend's Spanish labels.
type TicketStatus string

const (
	TicketPending  TicketStatus = "En trámite"
	TicketDenied   TicketStatus = "Denegada"
	TicketResolved TicketStatus = "Solucionado"
)

// Known reports whether the status is one of the three states the
// backend documents. Unknown values are kept as-is and rendered verbatim
// rather than rejected — the backend may grow states before we do.
func (s TicketStatus) Known() bool {
	switch s {
	case TicketPending, TicketDenied, TicketResolved:
		return true
	}
	return false
}

// Ticket is an incident report (broken equipment, classroom issues)
// owned by a user and triaged by the backend.
type Ticket struct {
	ID                 string       `json:"id"`
	OwnerNickname      string       `json:"userNick"`
	ClassOrDeviceLabel string       `json:"equipoClase"`
	Title              string       `json:"titulo"`
	Description        string       `json:"descripcion"`
	Status             TicketStatus `json:"estado"`
}

// CreateTicketRequest is the body for POST /tickets/crear.
type CreateTicketRequest struct {
	UserNick           string `json:"userNick"`
	ClassOrDeviceLabel string `json:"equipoClase"`
	Title              string `json:"titulo"`
	Description        string `json:"descripcion"`
}
