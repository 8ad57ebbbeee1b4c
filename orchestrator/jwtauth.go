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

package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// bearerClaims is the payload of a self-issued machine-to-machine bearer
// token: a node's own identity asserting its command grade, for API
// gateways (e.g. a tool-subscription reseller) that want to validate a
// token offline instead of round-tripping to this node's store.
type bearerClaims struct {
	NodeName string `json:"node_name"`
	Grade    int    `json:"grade"`
	jwt.RegisteredClaims
}

// IssueJWTBearer signs a bearer token asserting nodeName/grade, valid for
// ttl, using secret as the HMAC key. Complements UseRegistrationCode's
// opaque store-backed tokens for callers that need offline verification.
func (o *Orchestrator) IssueJWTBearer(admin string, nodeName string, grade int, ttl time.Duration, secret []byte) (string, error) {
	if _, err := o.authorize(admin); err != nil {
		return "", err
	}
	claims := bearerClaims{
		NodeName: nodeName,
		Grade:    grade,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(secret)
}

// isJWT reports whether token looks like a JWT rather than an opaque
// store-backed bearer token, so authorize can dispatch to the right
// validation path without changing the shape of existing opaque tokens.
func isJWT(token string) bool {
	return strings.Count(token, ".") == 2
}

// authorizeJWT validates a token minted by IssueJWTBearer against secret
// and, on success, resolves it to the same bearerRecord shape authorize
// produces for opaque tokens.
func authorizeJWT(token string, secret []byte) (bearerRecord, error) {
	var claims bearerClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("orchestrator: unexpected jwt signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return bearerRecord{}, errUnauthorized
	}
	return bearerRecord{NodeName: claims.NodeName, Grade: claims.Grade}, nil
}
