package firestore

import (
	"context"
	"fmt"

	gcfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Config selects the Firebase project and credentials.
type Config struct {
	ProjectID       string
	CredentialsFile string
}

// NewStore initializes a Firebase app and returns a store backed by its Firestore client.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("firestore: project id is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firestore client: %w", err)
	}
	return newStore(&clientBackend{client: client}), nil
}

type clientBackend struct {
	client *gcfirestore.Client
}

func translate(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return errDocumentMissing
	case codes.AlreadyExists:
		return errDocumentExists
	default:
		return err
	}
}

func (b *clientBackend) create(ctx context.Context, collection, id string, data any) error {
	_, err := b.client.Collection(collection).Doc(id).Create(ctx, data)
	return translate(err)
}

func (b *clientBackend) replace(ctx context.Context, collection, id string, build func(sequence int64) any) error {
	ref := b.client.Collection(collection).Doc(id)
	err := b.client.RunTransaction(ctx, func(_ context.Context, tx *gcfirestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var current struct {
			Sequence int64 `firestore:"seq"`
		}
		if err := snap.DataTo(&current); err != nil {
			return err
		}
		return tx.Set(ref, build(current.Sequence))
	})
	return translate(err)
}

func (b *clientBackend) get(ctx context.Context, collection, id string, dest any) error {
	snap, err := b.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return translate(err)
	}
	return snap.DataTo(dest)
}

func (b *clientBackend) remove(ctx context.Context, collection, id string) error {
	_, err := b.client.Collection(collection).Doc(id).Delete(ctx, gcfirestore.Exists)
	return translate(err)
}

func (b *clientBackend) list(ctx context.Context, collection string, each func(decode func(dest any) error) error) error {
	iter := b.client.Collection(collection).OrderBy("seq", gcfirestore.Asc).Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to iterate %s: %w", collection, err)
		}
		if err := each(snap.DataTo); err != nil {
			return err
		}
	}
}

func (b *clientBackend) close() error { return b.client.Close() }
