// Package firestore stores the registry in a Cloud Firestore collection and
// streams real-time snapshots of it.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"giftregistry/internal/core"
	"giftregistry/internal/store"
)

// DefaultCollection is the collection gifts live in when none is configured.
const DefaultCollection = "gifts"

type Config struct {
	CredentialsFile string
	ProjectID       string
	Collection      string
}

type Store struct {
	client     *firestore.Client
	collection string
}

var _ store.Store = (*Store)(nil)

// NewApp initializes a Firebase app. Without a credentials file the
// application default credentials are used.
func NewApp(ctx context.Context, credentialsFile, projectID string) (*firebase.App, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	return app, nil
}

// New opens a Firestore client through app.
func New(ctx context.Context, app *firebase.App, collection string) (*Store, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{client: client, collection: collection}, nil
}

// NewFromConfig is NewApp followed by New.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	app, err := NewApp(ctx, cfg.CredentialsFile, cfg.ProjectID)
	if err != nil {
		return nil, err
	}
	return New(ctx, app, cfg.Collection)
}

func (s *Store) col() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

func (s *Store) ListGifts(ctx context.Context) ([]core.GiftRecord, error) {
	it := s.col().Documents(ctx)
	defer it.Stop()
	var out []core.GiftRecord
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gifts: %w", err)
		}
		out = append(out, core.RecordFromFields(doc.Ref.ID, doc.Data()))
	}
	return out, nil
}

func (s *Store) GetGift(ctx context.Context, id string) (core.GiftRecord, error) {
	doc, err := s.col().Doc(id).Get(ctx)
	if err != nil {
		return core.GiftRecord{}, mapError("get gift", err)
	}
	return core.RecordFromFields(doc.Ref.ID, doc.Data()), nil
}

func (s *Store) CreateGift(ctx context.Context, rec core.GiftRecord) (string, error) {
	ref, _, err := s.col().Add(ctx, rec.Fields())
	if err != nil {
		return "", fmt.Errorf("add gift: %w", err)
	}
	slog.InfoContext(ctx, "Gift saved to Firestore", "id", ref.ID, "name", rec.Name)
	return ref.ID, nil
}

func (s *Store) UpdateGift(ctx context.Context, id string, patch core.GiftPatch) error {
	updates := toUpdates(patch)
	if len(updates) == 0 {
		_, err := s.GetGift(ctx, id)
		return err
	}
	if _, err := s.col().Doc(id).Update(ctx, updates); err != nil {
		return mapError("update gift", err)
	}
	return nil
}

// AppendContribution reads and rewrites the contribution list inside a
// transaction. ArrayUnion would drop a second contribution of the same amount.
func (s *Store) AppendContribution(ctx context.Context, id string, c core.Contribution) (core.GiftRecord, error) {
	ref := s.col().Doc(id)
	var rec core.GiftRecord
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		rec = core.RecordFromFields(doc.Ref.ID, doc.Data())
		rec.Contributions = append(rec.Contributions, c)
		return tx.Update(ref, []firestore.Update{{Path: "contributions", Value: contributionValues(rec.Contributions)}})
	})
	if err != nil {
		return core.GiftRecord{}, mapError("add contribution", err)
	}
	return rec, nil
}

func (s *Store) DeleteGift(ctx context.Context, id string) error {
	if _, err := s.col().Doc(id).Delete(ctx, firestore.Exists); err != nil {
		return mapError("delete gift", err)
	}
	return nil
}

// Subscribe follows the collection with a real-time listener. Every query
// snapshot is delivered whole.
func (s *Store) Subscribe(ctx context.Context, onSnapshot func([]core.GiftRecord), onError func(error)) error {
	it := s.col().Snapshots(ctx)
	defer it.Stop()
	for {
		qs, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return nil
			}
			err = fmt.Errorf("gift snapshot listener: %w", err)
			if onError != nil {
				onError(err)
			}
			return err
		}
		docs, err := qs.Documents.GetAll()
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("read gift snapshot: %w", err))
			}
			continue
		}
		records := make([]core.GiftRecord, 0, len(docs))
		for _, doc := range docs {
			records = append(records, core.RecordFromFields(doc.Ref.ID, doc.Data()))
		}
		onSnapshot(records)
	}
}

func (s *Store) Close() error {
	return s.client.Close()
}

// toUpdates converts a patch into field updates. Contributions are stored as
// a list of {"amount": n} maps.
func toUpdates(patch core.GiftPatch) []firestore.Update {
	var updates []firestore.Update
	for _, f := range patch.Fields() {
		v := f.Value
		if cs, ok := v.([]core.Contribution); ok {
			v = contributionValues(cs)
		}
		updates = append(updates, firestore.Update{Path: f.Name, Value: v})
	}
	return updates
}

func contributionValues(cs []core.Contribution) []map[string]any {
	list := make([]map[string]any, len(cs))
	for i, c := range cs {
		list[i] = map[string]any{"amount": c.Amount}
	}
	return list
}

func mapError(op string, err error) error {
	if status.Code(err) == codes.NotFound {
		return store.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
