// Package graph keeps an audit trail of served recommendations in Neo4j:
// which courses were recommended for which vacancy, at what rank and
// score. The trail is optional and never on the critical path.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Result is the subset of neo4j.ResultWithContext the package reads.
type Result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// Session is the subset of neo4j.SessionWithContext the package uses.
type Session interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
	Close(ctx context.Context) error
}

// SessionOpener opens sessions. Tests substitute a fake.
type SessionOpener interface {
	OpenSession(ctx context.Context) Session
}

// DriverOpener opens write sessions on a real driver.
type DriverOpener struct {
	Driver   neo4j.DriverWithContext
	Database string
}

type sessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a sessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a sessionAdapter) Close(ctx context.Context) error { return a.sess.Close(ctx) }

// OpenSession implements SessionOpener.
func (o DriverOpener) OpenSession(ctx context.Context) Session {
	return sessionAdapter{sess: o.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: o.Database,
	})}
}

// Connect creates a driver for url and verifies it can reach the server.
func Connect(ctx context.Context, url, user, pass string) (neo4j.DriverWithContext, error) {
	auth := neo4j.NoAuth()
	if user != "" {
		auth = neo4j.BasicAuth(user, pass, "")
	}
	driver, err := neo4j.NewDriverWithContext(url, auth)
	if err != nil {
		return nil, fmt.Errorf("graph: neo4j driver %s: %w", url, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("graph: neo4j verify %s: %w", url, err)
	}
	return driver, nil
}
