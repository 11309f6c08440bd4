package auth

import (
	"context"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"manga-bot/backend/pkg/errors"
	"manga-bot/backend/pkg/logger"
)

// FirestoreStore persists one document per guild under auth/global/guilds
// plus the global document itself. Selected at startup when a Firestore
// project is configured; the SQLite store is the fallback otherwise.
type FirestoreStore struct {
	client *firestore.Client
	log    *zap.Logger
}

// NewFirestoreStore connects to the project, optionally with a service
// account credentials file.
func NewFirestoreStore(ctx context.Context, projectID, credsFile string) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if credsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, errors.NewStorageOpenFailed("firestore:"+projectID, err)
	}
	return &FirestoreStore{client: client, log: logger.Named("firestore")}, nil
}

func (s *FirestoreStore) globalDoc() *firestore.DocumentRef {
	return s.client.Collection("auth").Doc("global")
}

func (s *FirestoreStore) guildDoc(guildID string) *firestore.DocumentRef {
	return s.globalDoc().Collection("guilds").Doc(guildID)
}

// LoadGlobal reads the global document; a missing document is empty state.
func (s *FirestoreStore) LoadGlobal(ctx context.Context) (*GlobalRecord, error) {
	snap, err := s.globalDoc().Get(ctx)
	if snap != nil && !snap.Exists() {
		return &GlobalRecord{Admins: []string{}, Moderators: []string{}}, nil
	}
	if err != nil {
		return nil, err
	}
	rec := &GlobalRecord{}
	if err := snap.DataTo(rec); err != nil {
		return nil, err
	}
	if rec.Admins == nil {
		rec.Admins = []string{}
	}
	if rec.Moderators == nil {
		rec.Moderators = []string{}
	}
	return rec, nil
}

// SaveGlobal overwrites the global document.
func (s *FirestoreStore) SaveGlobal(ctx context.Context, rec *GlobalRecord) error {
	_, err := s.globalDoc().Set(ctx, rec)
	return err
}

// ListGuilds enumerates guild document ids.
func (s *FirestoreStore) ListGuilds(ctx context.Context) ([]string, error) {
	iter := s.globalDoc().Collection("guilds").Documents(ctx)
	defer iter.Stop()
	var ids []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, doc.Ref.ID)
	}
	return ids, nil
}

// LoadGuild reads one guild document; missing documents are empty records.
func (s *FirestoreStore) LoadGuild(ctx context.Context, guildID string) (*GuildRecord, error) {
	snap, err := s.guildDoc(guildID).Get(ctx)
	if snap != nil && !snap.Exists() {
		return NewGuildRecord(), nil
	}
	if err != nil {
		return nil, err
	}
	rec := NewGuildRecord()
	if err := snap.DataTo(rec); err != nil {
		return nil, err
	}
	if rec.Overrides == nil {
		rec.Overrides = map[string]*CommandOverride{}
	}
	return rec, nil
}

// SaveGuild overwrites one guild document.
func (s *FirestoreStore) SaveGuild(ctx context.Context, guildID string, rec *GuildRecord) error {
	_, err := s.guildDoc(guildID).Set(ctx, rec)
	return err
}

// DeleteGuild removes the guild document.
func (s *FirestoreStore) DeleteGuild(ctx context.Context, guildID string) error {
	_, err := s.guildDoc(guildID).Delete(ctx)
	return err
}

// Close releases the client connection.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
