// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/spf13/cobra"

	"github.com/shinkainet/node/config"
	shinkaicrypto "github.com/shinkainet/node/crypto"
	"github.com/shinkainet/node/envelope"
	"github.com/shinkainet/node/identity"
	"github.com/shinkainet/node/internal/logger"
	"github.com/shinkainet/node/orchestrator"
	"github.com/shinkainet/node/pkg/health"
	"github.com/shinkainet/node/pkg/storage/postgres"
	"github.com/shinkainet/node/store"
	"github.com/shinkainet/node/transport"
	"github.com/shinkainet/node/workqueue"
)

var nodeName string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the node and block until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDir, Environment: configEnv})
		if err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "invalid configuration: %v\n", err)
			os.Exit(exitBadConfig)
			return nil
		}

		if err := runNode(cmd.Context(), cfg); err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "node exited: %v\n", err)
			os.Exit(exitFail)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&configDir, "config-dir", "", "directory holding config.yaml / <env>.yaml")
	serveCmd.Flags().StringVar(&configEnv, "env", "", "environment name (defaults to SHINKAI_ENV/ENVIRONMENT)")
	serveCmd.Flags().StringVar(&nodeName, "node-name", "", "this node's registered name (overrides SHINKAI_NODE_NAME)")
	rootCmd.AddCommand(serveCmd)
}

// deriveIdentity builds the node's signing/encryption keypairs. When a
// secret_desktop_key is configured the keys are derived deterministically
// from its BLAKE3 hash, so a restarted node recovers the same identity;
// otherwise fresh random keys are generated for the process lifetime.
func deriveIdentity(cfg *config.Config) (shinkaicrypto.SigningKeyPair, shinkaicrypto.EncryptionKeyPair, error) {
	if cfg.SecretDesktopKey != "" {
		seed := shinkaicrypto.BLAKE3([]byte(cfg.SecretDesktopKey))
		sig, err := shinkaicrypto.SigningKeyPairFromSeed(seed)
		if err != nil {
			return shinkaicrypto.SigningKeyPair{}, shinkaicrypto.EncryptionKeyPair{}, fmt.Errorf("derive signing key: %w", err)
		}
		encSeed := shinkaicrypto.BLAKE3(append([]byte("encryption"), seed[:]...))
		enc, err := shinkaicrypto.EncryptionKeyPairFromSeed(encSeed)
		if err != nil {
			return shinkaicrypto.SigningKeyPair{}, shinkaicrypto.EncryptionKeyPair{}, fmt.Errorf("derive encryption key: %w", err)
		}
		return sig, enc, nil
	}

	sig, err := shinkaicrypto.GenerateSigningKeyPair()
	if err != nil {
		return shinkaicrypto.SigningKeyPair{}, shinkaicrypto.EncryptionKeyPair{}, fmt.Errorf("generate signing key: %w", err)
	}
	enc, err := shinkaicrypto.GenerateEncryptionKeyPair()
	if err != nil {
		return shinkaicrypto.SigningKeyPair{}, shinkaicrypto.EncryptionKeyPair{}, fmt.Errorf("generate encryption key: %w", err)
	}
	return sig, enc, nil
}

// buildResolver combines whichever chain registries are enabled in cfg
// into a single identity.Resolver, per the node's name-resolution layer.
func buildResolver(cfg *config.Config) (identity.Resolver, error) {
	var chains []identity.Resolver

	if cfg.Ethereum.Enabled() {
		r, err := identity.NewEthereumResolver(cfg.Ethereum.RPCEndpoint, cfg.Ethereum.ContractAddress)
		if err != nil {
			return nil, fmt.Errorf("ethereum resolver: %w", err)
		}
		chains = append(chains, r)
	}
	if cfg.Solana.Enabled() {
		r, err := identity.NewSolanaResolver(cfg.Solana.RPCEndpoint, cfg.Solana.ProgramID)
		if err != nil {
			return nil, fmt.Errorf("solana resolver: %w", err)
		}
		chains = append(chains, r)
	}

	if len(chains) == 0 {
		return identity.ResolverFunc(func(ctx context.Context, name string) (identity.ExternalIdentity, error) {
			return identity.ExternalIdentity{}, fmt.Errorf("no chain resolver configured for %q", name)
		}), nil
	}
	return identity.NewChainResolver(chains...), nil
}

// runNode wires every subsystem together and blocks until ctx is
// cancelled or an OS interrupt/terminate signal arrives.
func runNode(ctx context.Context, cfg *config.Config) error {
	log := logger.NewLogger(os.Stdout, parseLevel(cfg.Logging.Level))
	log.Info("starting node", logger.String("environment", cfg.Environment))

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(cfg.DBPath, store.Options{InMemory: cfg.IsTesting})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	sigPK, encPK, err := deriveIdentity(cfg)
	if err != nil {
		return fmt.Errorf("derive identity: %w", err)
	}

	selfName := nodeName
	if selfName == "" {
		selfName = os.Getenv("SHINKAI_NODE_NAME")
	}
	if selfName == "" {
		selfName = "localhost"
	}

	resolver, err := buildResolver(cfg)
	if err != nil {
		return fmt.Errorf("build resolver: %w", err)
	}
	ids := identity.NewManager(resolver)
	ids.Register(identity.LocalIdentity{
		Name:  selfName,
		SigPK: sigPK.PublicKey,
		EncPK: encPK.PublicKey,
		Grade: identity.GradeAdmin,
	})

	libp2pPriv, err := transport.RandomIdentity()
	if err != nil {
		return fmt.Errorf("generate transport identity: %w", err)
	}

	dispatcher := orchestrator.NewJobDispatcher(st)
	self := orchestrator.Identity{Name: selfName, Signing: sigPK, Enc: encPK}

	var orch *orchestrator.Orchestrator
	xport, err := transport.New(ctx, transport.Config{
		PrivKey:      libp2pPriv,
		ListenPort:   cfg.ListenPort,
		RelayAddress: cfg.RelayAddress,
		Handler: func(from peer.ID, msg envelope.Message) {
			orch.HandleInbound(ctx, from, msg)
		},
	})
	if err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	defer xport.Close()

	orch = orchestrator.New(self, st, ids, xport, dispatcher)

	if cfg.Postgres.Enabled() {
		pg, err := postgres.NewStore(ctx, &postgres.Config{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
			SSLMode:  cfg.Postgres.SSLMode,
		})
		if err != nil {
			return fmt.Errorf("connect replay guard postgres: %w", err)
		}
		defer pg.Close()
		orch.SetReplayGuard(pg.NonceStore())
		log.Info("replay guard backed by postgres", logger.String("host", cfg.Postgres.Host))
	}

	var wg sync.WaitGroup
	runSupervisor := func(q *workqueue.Queue) {
		sup := workqueue.NewSupervisor([]*workqueue.Queue{q}, cfg.WorkQueueConcurrency, jobProcessor(orch))
		wg.Add(1)
		go func() {
			defer wg.Done()
			sup.Run(ctx)
		}()
	}
	for _, q := range dispatcher.Queues() {
		runSupervisor(q)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case q, ok := <-dispatcher.NewQueueNotify():
				if !ok {
					return
				}
				runSupervisor(q)
			}
		}
	}()

	var healthServer *health.Server
	if cfg.Health.Enabled {
		healthServer, err = health.StartHealthServer(
			cfg.Health.Port,
			storePing(st),
			transportPing(xport),
			queueDepth(dispatcher),
			1000,
		)
		if err != nil {
			return fmt.Errorf("start health server: %w", err)
		}
	}

	log.Info("node started", logger.String("name", selfName))

	<-ctx.Done()
	log.Info("shutting down")

	if healthServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		_ = healthServer.Stop(shutdownCtx)
	}

	wg.Wait()
	return nil
}
