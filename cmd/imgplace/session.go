package main

import (
	"fmt"
	"path/filepath"

	"github.com/kittyplace/imgplace/pkg/config"
	"github.com/kittyplace/imgplace/pkg/idspace"
	"github.com/kittyplace/imgplace/pkg/idstore"
	"github.com/kittyplace/imgplace/pkg/terminal"
	"github.com/kittyplace/imgplace/pkg/upload"
)

// session bundles the durable handles one CLI invocation needs: the ID
// allocator and upload tracker sharing a single session database file,
// plus the resolved terminal/session identity.
type session struct {
	cfg        *config.Config
	ids        *idstore.Store
	uploads    *upload.Store
	coord      *upload.Coordinator
	terminalID string
	sessionID  string
	featureSpace idspace.FeatureSpace
	subspace     idspace.Subspace
}

func openSession(cfg *config.Config) (*session, error) {
	sessionID := cfg.General.SessionID
	if sessionID == "" {
		sessionID = terminal.SessionID()
	}

	fs, err := parseIDSpace(cfg.IDs.IDSpace)
	if err != nil {
		return nil, err
	}
	sub := idspace.Subspace{}
	if cfg.IDs.IDSubspace != "" {
		sub, err = idspace.ParseSubspaceBits(cfg.IDs.IDSubspace)
		if err != nil {
			return nil, err
		}
	}

	dbPath := filepath.Join(cfg.General.IDDatabaseDir, sessionID+".db")
	ids, err := idstore.Open(dbPath, idstore.WithMaxIDsPerSubspace(cfg.IDs.MaxIDsPerSubspace))
	if err != nil {
		return nil, err
	}
	uploads, err := upload.NewStore(ids.DB())
	if err != nil {
		ids.Close()
		return nil, err
	}

	return &session{
		cfg: cfg, ids: ids, uploads: uploads, coord: upload.NewCoordinator(uploads),
		terminalID: sessionID, sessionID: sessionID,
		featureSpace: fs, subspace: sub,
	}, nil
}

func (s *session) Close() {
	s.uploads.Close()
	s.ids.Close()
}

func parseIDSpace(name string) (idspace.FeatureSpace, error) {
	switch name {
	case "8bit":
		return idspace.Color8, nil
	case "24bit":
		return idspace.Color24, nil
	case "8bit+4th":
		return idspace.Color8Plus4th, nil
	case "24bit+4th", "":
		return idspace.Color24Plus4th, nil
	default:
		return idspace.FeatureSpace{}, fmt.Errorf("imgplace: unknown id_space %q", name)
	}
}

func (s *session) uploadParams() upload.Params {
	u := s.cfg.Upload
	return upload.Params{
		NumAttempts:           u.NumAttempts,
		CommandDelay:          u.UploadCommandDelay.Duration,
		StallTimeout:          u.StallTimeout.Duration,
		ProgressInterval:      u.UploadProgressUpdateInterval.Duration,
		MaxPayloadSize:        u.MaxPayloadSize,
		AllowConcurrent:       u.AllowConcurrent,
		ForceUpload:           u.ForceUpload,
		ReuploadMaxBytesAgo:   u.ReuploadMaxBytesAgo,
		ReuploadMaxUploadsAgo: u.ReuploadMaxUploadsAgo,
		ReuploadMaxSecondsAgo: u.ReuploadMaxSecondsAgo.Duration,
		Transport: upload.TransportPolicy{
			Method:        u.UploadMethod,
			StreamMaxSize: u.StreamMaxSize,
			FileMaxSize:   u.FileMaxSize,
			IsSSH:         terminal.IsSSH(),
		},
	}
}
