package auth

import "context"

// Store is the persistence backend behind the save queue. Implementations:
// per-guild SQLite files (always available) and Firestore (selected when
// credentials are configured).
type Store interface {
	LoadGlobal(ctx context.Context) (*GlobalRecord, error)
	SaveGlobal(ctx context.Context, rec *GlobalRecord) error

	ListGuilds(ctx context.Context) ([]string, error)
	LoadGuild(ctx context.Context, guildID string) (*GuildRecord, error)
	SaveGuild(ctx context.Context, guildID string, rec *GuildRecord) error
	DeleteGuild(ctx context.Context, guildID string) error

	Close() error
}
