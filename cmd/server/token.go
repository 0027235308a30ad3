package main

import (
	"context"
	"fmt"
	"io"

	"github.com/phrazzld/assessment-engine/internal/config"
	"github.com/phrazzld/assessment-engine/internal/service/auth"
)

// issueToken writes a signed bearer token for subject to w.
func issueToken(ctx context.Context, cfg config.AuthConfig, subject string, w io.Writer) error {
	svc, err := auth.NewJWTService(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	token, err := svc.GenerateToken(ctx, subject)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}
	_, err = fmt.Fprintln(w, token)
	return err
}
