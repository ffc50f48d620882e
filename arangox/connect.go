package arangox

import (
	"context"
	"net/http"

	arangoDriver "github.com/arangodb/go-driver"
	arangoHttp "github.com/arangodb/go-driver/http"
	"github.com/clinia/indexsync/errorx"
)

type Config struct {
	Endpoints  []string `json:"endpoints"`
	Database   string   `json:"database"`
	Collection string   `json:"collection"`
	// ScopeField is the record attribute holding the data partition of a record.
	ScopeField string `json:"scope_field"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// Connect opens the database described by c. The database must exist.
func Connect(ctx context.Context, c Config) (arangoDriver.Database, error) {
	if len(c.Endpoints) == 0 {
		return nil, errorx.InvalidArgumentErrorf("at least one arango endpoint is required")
	}

	conn, err := arangoHttp.NewConnection(arangoHttp.ConnectionConfig{
		Endpoints: c.Endpoints,
	})
	if err != nil {
		return nil, errorx.InvalidArgumentErrorf("invalid arango connection").WithOriginalError(err)
	}

	cc := arangoDriver.ClientConfig{Connection: conn}
	if c.Username != "" {
		cc.Authentication = arangoDriver.BasicAuthentication(c.Username, c.Password)
	}
	client, err := arangoDriver.NewClient(cc)
	if err != nil {
		return nil, errorx.InvalidArgumentErrorf("invalid arango client").WithOriginalError(err)
	}

	db, err := client.Database(ctx, c.Database)
	if err != nil {
		if arangoDriver.IsArangoErrorWithCode(err, http.StatusNotFound) {
			return nil, errorx.NotFoundErrorf("arango database %s not found", c.Database).WithOriginalError(err)
		}
		return nil, wrapError(err, "could not open arango database %s", c.Database)
	}

	return db, nil
}
