package cmd

import (
	"errors"
	"fmt"

	"github.com/telekom/fleet-coordinator/pkg/fleetctl/auth"
	"github.com/telekom/fleet-coordinator/pkg/fleetctl/client"
	"github.com/telekom/fleet-coordinator/pkg/fleetctl/config"
)

func buildClient(rt *runtimeState) (*client.Client, error) {
	// Server and token together bypass context resolution entirely.
	if rt.serverOverride != "" && rt.tokenOverride != "" {
		return client.New(client.Options{
			Server: rt.serverOverride,
			Token:  rt.tokenOverride,
		})
	}

	if err := rt.EnsureConfigLoaded(); err != nil {
		return nil, err
	}
	ctxCfg, err := rt.ResolveContext()
	if err != nil {
		return nil, err
	}
	server := rt.resolveServer(ctxCfg)
	if server == "" {
		return nil, errors.New("server is required")
	}

	token := rt.tokenOverride
	if token == "" {
		token, err = resolveStoredToken(rt, ctxCfg)
		if err != nil {
			return nil, err
		}
	}

	return client.New(client.Options{
		Server:                server,
		Token:                 token,
		CAFile:                ctxCfg.CAFile,
		InsecureSkipTLSVerify: ctxCfg.InsecureSkipTLSVerify,
	})
}

func resolveStoredToken(rt *runtimeState, ctxCfg *config.Context) (string, error) {
	store, err := auth.NewStore(rt.TokenStorage(), config.DefaultTokenPath())
	if err != nil {
		return "", err
	}
	token, ok, err := store.Get(ctxCfg.Name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no token for context %q; run 'fleetctl auth set-token'", ctxCfg.Name)
	}
	return token, nil
}
