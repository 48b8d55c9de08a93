package http

import (
	"errors"
	"net/http"

	"giftregistry/internal/core"
	"giftregistry/internal/log"
	"giftregistry/internal/middleware/identity"
	"giftregistry/internal/services"
	"giftregistry/internal/store"
)

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// errorResponse renders an HTML fragment plus a notification for HTMX and
// a JSON body for everyone else.
func (s *Server) errorResponse(r *http.Request, status int, message string) *HTMXResponseBuilder {
	if isHTMX(r) {
		return ErrorResponse(status, message).TriggerErrorNotification(message)
	}
	return JSONErrorResponse(status, message)
}

// writeError maps service errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := http.StatusInternalServerError, "Something went wrong, please try again"
	switch {
	case errors.Is(err, core.ErrEmptyName):
		status, message = http.StatusUnprocessableEntity, "Gift name is required"
	case errors.Is(err, core.ErrInvalidAmount):
		status, message = http.StatusUnprocessableEntity, "Enter an amount greater than zero"
	case errors.Is(err, core.ErrEmptyUser):
		status, message = http.StatusUnauthorized, "Sign in to change the registry"
	case errors.Is(err, services.ErrForbidden):
		status, message = http.StatusForbidden, "Only the person who added this gift can change it"
	case errors.Is(err, services.ErrNotPooled):
		status, message = http.StatusUnprocessableEntity, "Only group and cash gifts take contributions"
	case errors.Is(err, services.ErrUnknownSuggestion):
		status, message = http.StatusBadRequest, "Unknown suggestion"
	case errors.Is(err, store.ErrNotFound):
		status, message = http.StatusNotFound, "Gift not found"
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Gift mutation failed",
			log.FieldError, err, log.FieldPath, r.URL.Path)
	}
	s.errorResponse(r, status, message).Write(w)
}

// parseBody reads a JSON or form body. It writes the 400 itself and returns
// nil when the body is unusable.
func (s *Server) parseBody(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.errorResponse(r, http.StatusBadRequest, "Invalid request body").Write(w)
		return nil
	}
	return p
}

func (s *Server) handleCreateGift(w http.ResponseWriter, r *http.Request) {
	p := s.parseBody(w, r)
	if p == nil {
		return
	}
	id, err := s.gifts.CreateGift(r.Context(), p.GiftInput(), identity.User(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerGiftCreated(id).
		TriggerFormReset().
		TriggerSuccessNotification("Gift added").
		BodyJSON(map[string]string{"id": id}).
		Write(w)
}

func (s *Server) handleEditGift(w http.ResponseWriter, r *http.Request) {
	p := s.parseBody(w, r)
	if p == nil {
		return
	}
	id := r.PathValue("id")
	if err := s.gifts.EditGift(r.Context(), id, p.GiftInput(), identity.User(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewHTMXResponse().
		TriggerGiftUpdated(id).
		TriggerFormReset().
		TriggerSuccessNotification("Gift updated").
		BodyJSON(map[string]string{"id": id}).
		Write(w)
}

func (s *Server) handleTogglePurchased(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	purchased, err := s.gifts.TogglePurchased(r.Context(), id, identity.User(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewHTMXResponse().
		TriggerGiftUpdated(id).
		BodyJSON(map[string]any{"id": id, "purchased": purchased}).
		Write(w)
}

func (s *Server) handleAddContribution(w http.ResponseWriter, r *http.Request) {
	p := s.parseBody(w, r)
	if p == nil {
		return
	}
	id := r.PathValue("id")
	progress, err := s.gifts.AddContribution(r.Context(), id, p.Get("amount"), identity.User(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewHTMXResponse().
		TriggerGiftUpdated(id).
		TriggerSuccessNotification("Contribution added").
		BodyJSON(map[string]any{"id": id, "progress": progress}).
		Write(w)
}

func (s *Server) handleDeleteGift(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.gifts.DeleteGift(r.Context(), id, identity.User(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewHTMXResponse().
		TriggerGiftDeleted(id).
		TriggerSuccessNotification("Gift removed").
		BodyJSON(map[string]string{"id": id}).
		Write(w)
}

func (s *Server) handleAcceptSuggestion(w http.ResponseWriter, r *http.Request) {
	p := s.parseBody(w, r)
	if p == nil {
		return
	}
	id, err := s.gifts.AcceptSuggestion(r.Context(), p.Get("name"), p.Get("recipient"), identity.User(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerGiftCreated(id).
		TriggerSuccessNotification("Suggestion added").
		BodyJSON(map[string]string{"id": id}).
		Write(w)
}
