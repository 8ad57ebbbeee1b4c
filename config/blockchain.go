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

package config

// EthereumConfig points the identity manager's Ethereum resolver at a
// registry contract. Empty RPCEndpoint disables the Ethereum resolver.
type EthereumConfig struct {
	RPCEndpoint     string `yaml:"rpc_endpoint" json:"rpc_endpoint"`
	ContractAddress string `yaml:"contract_address" json:"contract_address"`
}

// Enabled reports whether enough fields are set to construct a resolver.
func (c EthereumConfig) Enabled() bool {
	return c.RPCEndpoint != "" && c.ContractAddress != ""
}

// SolanaConfig points the identity manager's Solana resolver at a registry
// program. Empty RPCEndpoint disables the Solana resolver.
type SolanaConfig struct {
	RPCEndpoint string `yaml:"rpc_endpoint" json:"rpc_endpoint"`
	ProgramID   string `yaml:"program_id" json:"program_id"`
}

// Enabled reports whether enough fields are set to construct a resolver.
func (c SolanaConfig) Enabled() bool {
	return c.RPCEndpoint != "" && c.ProgramID != ""
}

// PostgresConfig points the orchestrator's optional replay guard at a
// durable Postgres instance. Empty Host disables it; inbound envelopes
// are then not checked for replay.
type PostgresConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	Database string `yaml:"database" json:"database"`
	SSLMode  string `yaml:"ssl_mode" json:"ssl_mode"`
}

// Enabled reports whether enough fields are set to dial Postgres.
func (c PostgresConfig) Enabled() bool {
	return c.Host != "" && c.Database != ""
}
