// Package testutil provides fake documents and design documents for tests
package testutil

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/viewkit/viewkit"
)

//go:embed testdata/users.yaml
var UsersDesign []byte

// UsersDesignName is the name UsersDesign is stored under by TestBucket
const UsersDesignName = "users"

// NewUserDoc returns a fake user document
func NewUserDoc() map[string]any {
	return map[string]any{
		"name": gofakeit.Name(),
		"contact": map[string]any{
			"email": gofakeit.Email(),
		},
		"account_id": gofakeit.IntRange(0, 5),
		"language":   gofakeit.RandomString([]string{"english", "spanish", "french"}),
		"age":        gofakeit.IntRange(18, 100),
	}
}

// NewUserDocs returns n fake user documents keyed by id
func NewUserDocs(n int) map[string][]byte {
	docs := map[string][]byte{}
	for i := 0; i < n; i++ {
		bits, err := json.Marshal(NewUserDoc())
		if err != nil {
			panic(err)
		}
		docs[fmt.Sprintf("user-%04d", i)] = bits
	}
	return docs
}

// TestBucket opens an in-memory bucket loaded with UsersDesign and n fake users and passes it to fn
func TestBucket(n int, fn func(ctx context.Context, bucket *viewkit.Bucket)) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cfg := viewkit.DefaultConfig()
	cfg.LogLevel = "error"
	bucket, err := viewkit.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer bucket.Close(ctx)
	if _, err := bucket.PutDesign(ctx, UsersDesignName, UsersDesign); err != nil {
		return err
	}
	if n > 0 {
		if err := bucket.PutMany(ctx, NewUserDocs(n)); err != nil {
			return err
		}
	}
	fn(ctx, bucket)
	return nil
}
