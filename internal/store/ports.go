package store

import (
	"context"
	"errors"

	"giftregistry/internal/core"
)

// ErrNotFound is returned when a gift id does not exist in the store.
var ErrNotFound = errors.New("gift not found")

// Ports for outbound adapters.
type (
	Lister interface {
		// ListGifts returns the whole registry in storage order.
		ListGifts(ctx context.Context) ([]core.GiftRecord, error)
		GetGift(ctx context.Context, id string) (core.GiftRecord, error)
	}

	Writer interface {
		// CreateGift stores rec and returns the id assigned by the store.
		CreateGift(ctx context.Context, rec core.GiftRecord) (id string, err error)
		UpdateGift(ctx context.Context, id string, patch core.GiftPatch) error
		DeleteGift(ctx context.Context, id string) error
		// AppendContribution adds c to the gift's contributions in one atomic
		// step and returns the updated record.
		AppendContribution(ctx context.Context, id string, c core.Contribution) (core.GiftRecord, error)
	}

	// Subscriber pushes full snapshots of the registry. Subscribe delivers the
	// current state right away, then again after every change, and blocks
	// until ctx is done (nil) or the subscription breaks (non-nil).
	Subscriber interface {
		Subscribe(ctx context.Context, onSnapshot func([]core.GiftRecord), onError func(error)) error
	}

	Store interface {
		Lister
		Writer
		Subscriber
		Close() error
	}
)
