package service

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/api/option"

	"github.com/Rishie123/billprocessor/config"
)

// Clients bundles the shared external capability handles. They are built
// once per process behind a sync.Once and never torn down; all three are
// safe for concurrent use. A failure here is fatal for the whole session,
// no pipeline run is attempted without them.
type Clients struct {
	Model  *GeminiService
	Drive  *DriveService
	Sheets *SheetsService
}

var (
	globalClients *Clients
	clientsOnce   sync.Once
	clientsErr    error
)

// InitClients initializes the shared Gemini, Drive and Sheets clients.
// Subsequent calls return the first result, including the first error.
func InitClients(ctx context.Context, cfg *config.Config) (*Clients, error) {
	clientsOnce.Do(func() {
		model, err := NewGeminiService(ctx, &cfg.Gemini)
		if err != nil {
			clientsErr = fmt.Errorf("gemini init: %w", err)
			return
		}

		var opts []option.ClientOption
		if cfg.Google.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.Google.CredentialsFile))
		}

		driveSvc, err := NewDriveService(ctx, &cfg.Drive, opts...)
		if err != nil {
			clientsErr = fmt.Errorf("drive init: %w", err)
			return
		}

		sheetsSvc, err := NewSheetsService(ctx, &cfg.Sheets, opts...)
		if err != nil {
			clientsErr = fmt.Errorf("sheets init: %w", err)
			return
		}

		globalClients = &Clients{
			Model:  model,
			Drive:  driveSvc,
			Sheets: sheetsSvc,
		}
	})
	return globalClients, clientsErr
}
