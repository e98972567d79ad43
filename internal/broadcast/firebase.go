package broadcast

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"github.com/damoang/angple-messenger/internal/config"
	"google.golang.org/api/option"
)

// RealtimeDB pushes a value under a path of a realtime database
type RealtimeDB interface {
	Push(ctx context.Context, path string, v interface{}) error
}

type firebaseDB struct {
	client *db.Client
}

func (f *firebaseDB) Push(ctx context.Context, path string, v interface{}) error {
	_, err := f.client.NewRef(path).Push(ctx, v)
	return err
}

// FirebaseDriver cloud realtime relay: clients listen on <root>/<class>/<channel>
type FirebaseDriver struct {
	db   RealtimeDB
	root string
}

// NewFirebaseDriver initializes the Firebase app and its realtime database client
func NewFirebaseDriver(ctx context.Context, cfg config.FirebaseConfig) (*FirebaseDriver, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: cfg.DatabaseURL}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase database: %w", err)
	}
	return NewFirebaseDriverWithDB(&firebaseDB{client: client}, cfg.RootPath), nil
}

// NewFirebaseDriverWithDB wraps an existing database handle
func NewFirebaseDriverWithDB(rtdb RealtimeDB, root string) *FirebaseDriver {
	return &FirebaseDriver{db: rtdb, root: strings.Trim(root, "/")}
}

func (d *FirebaseDriver) Name() string { return "firebase" }

// Path database path of a channel; realtime database keys cannot contain dots
func (d *FirebaseDriver) Path(ch Channel) string {
	return d.root + "/" + string(ch.Class) + "/" + strings.ReplaceAll(ch.Name, ".", "/")
}

func (d *FirebaseDriver) Broadcast(ctx context.Context, ev Event) error {
	for _, ch := range ev.Channels {
		if err := d.db.Push(ctx, d.Path(ch), ev.Envelope(ch)); err != nil {
			return fmt.Errorf("firebase push %s: %w", d.Path(ch), err)
		}
	}
	return nil
}
