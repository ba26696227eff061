// Package tickets is the controller behind the incident-ticketing
// screens: the per-user ticket list and the creation form.
//
// Ticket status is owned by the backend. The client renders it and
// nothing else — there is no client-side transition, ever.
package tickets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sakif/campusfeed/internal/apperror"
	"github.com/sakif/campusfeed/internal/model"
)

const MaxTitleLength = 40 // the form caps the title at 40 characters

// Gateway is the slice of the backend client this controller consumes.
type Gateway interface {
	ListTickets(ctx context.Context, nick string) ([]model.Ticket, error)
	CreateTicket(ctx context.Context, req model.CreateTicketRequest) (*model.Ticket, error)
}

// Controller manages the signed-in user's tickets. The list is
// re-fetched every time the screen gains focus — no caching.
type Controller struct {
	gateway Gateway
	logger  *slog.Logger

	mu      sync.Mutex
	tickets []model.Ticket
}

func NewController(gateway Gateway, logger *slog.Logger) *Controller {
	return &Controller{
		gateway: gateway,
		logger:  logger,
		tickets: []model.Ticket{},
	}
}

// LoadTickets fetches the tickets owned by ownerNick. Fetch failures are
// logged and leave the previous list in place (silent read path — the
// screen shows what it has, or nothing).
func (c *Controller) LoadTickets(ctx context.Context, ownerNick string) ([]model.Ticket, error) {
	tickets, err := c.gateway.ListTickets(ctx, ownerNick)
	if err != nil {
		c.logger.Warn("ticket load failed",
			slog.String("nick", ownerNick),
			slog.String("error", err.Error()),
		)
		return c.Tickets(), nil
	}

	c.mu.Lock()
	c.tickets = tickets
	c.mu.Unlock()
	return c.Tickets(), nil
}

// CreateTicket validates and files a new ticket. Unlike the read path,
// creation surfaces its outcome explicitly: the form ends in a success
// or failure dialog either way.
func (c *Controller) CreateTicket(ctx context.Context, ownerNick, classOrDevice, title, description string) (*model.Ticket, error) {
	classOrDevice = strings.TrimSpace(classOrDevice)
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	if classOrDevice == "" {
		return nil, apperror.ValidationFailed("equipoClase", "class or device label is required")
	}
	if title == "" {
		return nil, apperror.ValidationFailed("titulo", "title is required")
	}
	if len(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("titulo",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if description == "" {
		return nil, apperror.ValidationFailed("descripcion", "description is required")
	}

	created, err := c.gateway.CreateTicket(ctx, model.CreateTicketRequest{
		UserNick:           ownerNick,
		ClassOrDeviceLabel: classOrDevice,
		Title:              title,
		Description:        description,
	})
	if err != nil {
		return nil, fmt.Errorf("tickets: creating ticket: %w", err)
	}

	c.logger.Info("ticket created",
		slog.String("id", created.ID),
		slog.String("nick", ownerNick),
	)
	return created, nil
}

// Tickets returns a copy of the current list.
func (c *Controller) Tickets() []model.Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Ticket, len(c.tickets))
	copy(out, c.tickets)
	return out
}
