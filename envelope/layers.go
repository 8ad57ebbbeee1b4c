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

package envelope

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/shinkainet/node/crypto"
)

var (
	// ErrBodyAlreadyEncrypted is returned by operations that require a
	// Plain body when the body is already Encrypted.
	ErrBodyAlreadyEncrypted = fmt.Errorf("envelope: body is already encrypted")
	// ErrBodyNotEncrypted is returned by decrypt operations when the
	// target layer is already plaintext.
	ErrBodyNotEncrypted = fmt.Errorf("envelope: body is not encrypted")
	// ErrMalformedCiphertext is returned when a sealed field doesn't
	// carry the expected prefix or length framing.
	ErrMalformedCiphertext = fmt.Errorf("envelope: malformed ciphertext")
	// ErrEncryptionFieldMismatch is returned when a layer's declared
	// Encryption method contradicts the shape of its content: a body
	// carrying the encrypted-content prefix while its Encryption field
	// says none, or vice versa.
	ErrEncryptionFieldMismatch = fmt.Errorf("envelope: declared encryption method does not match body content")
)

// SignInner signs the Plain body (data + internal_metadata, with
// internal_metadata.signature and node_api_data cleared) and writes the
// hex signature into msg.Body.InternalMetadata.Signature.
func SignInner(msg *Message, sk crypto.SigningKeyPair) error {
	if msg.Body.IsEncrypted() {
		return ErrBodyAlreadyEncrypted
	}
	clone, err := cloneBody(msg.Body)
	if err != nil {
		return err
	}
	clone.InternalMetadata.Signature = ""
	clone.InternalMetadata.NodeAPIData = nil

	h, err := hashValue(clone)
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(sk, []byte(h))
	if err != nil {
		return err
	}
	msg.Body.InternalMetadata.Signature = hex.EncodeToString(sig)
	return nil
}

// VerifyInner reports whether msg's inner signature is valid under pk.
func VerifyInner(msg Message, pk [32]byte) bool {
	if msg.Body.IsEncrypted() {
		return false
	}
	sig := msg.Body.InternalMetadata.Signature
	if sig == "" {
		return false
	}
	clone, err := cloneBody(msg.Body)
	if err != nil {
		return false
	}
	clone.InternalMetadata.Signature = ""
	clone.InternalMetadata.NodeAPIData = nil

	h, err := hashValue(clone)
	if err != nil {
		return false
	}
	sigBytes, err := crypto.DecodeSignature64(sig)
	if err != nil {
		return false
	}
	return crypto.Verify(pk, []byte(h), sigBytes)
}

// SignOuter signs the whole message (external_metadata.signature and any
// node_api_data cleared in a clone) and writes the hex signature into
// msg.ExternalMetadata.Signature.
func SignOuter(msg *Message, sk crypto.SigningKeyPair) error {
	clone, err := cloneMessage(*msg)
	if err != nil {
		return err
	}
	clone.ExternalMetadata.Signature = ""
	if !clone.Body.IsEncrypted() {
		clone.Body.InternalMetadata.NodeAPIData = nil
	}

	h, err := hashValue(clone)
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(sk, []byte(h))
	if err != nil {
		return err
	}
	msg.ExternalMetadata.Signature = hex.EncodeToString(sig)
	return nil
}

// VerifyOuter reports whether msg's outer signature is valid under pk.
// The message must be in its signed, pre-encrypt-outer form: if the body
// is Encrypted, decrypt it first via DecryptOuter.
func VerifyOuter(msg Message, pk [32]byte) bool {
	sig := msg.ExternalMetadata.Signature
	if sig == "" {
		return false
	}
	clone, err := cloneMessage(msg)
	if err != nil {
		return false
	}
	clone.ExternalMetadata.Signature = ""
	if !clone.Body.IsEncrypted() {
		clone.Body.InternalMetadata.NodeAPIData = nil
	}

	h, err := hashValue(clone)
	if err != nil {
		return false
	}
	sigBytes, err := crypto.DecodeSignature64(sig)
	if err != nil {
		return false
	}
	return crypto.Verify(pk, []byte(h), sigBytes)
}

// EncryptOuter seals the whole Plain body under DH(selfEncSK, destEncPK)
// and replaces it with the Encrypted variant. Per spec, the outer
// signature must be (re-)computed relative to the Plain form; callers
// that encrypt standalone (outside Build) must call SignOuter again
// afterwards if they need the signature to match a later re-sign policy.
func EncryptOuter(msg *Message, selfEncSK crypto.EncryptionKeyPair, destEncPK [32]byte) error {
	if msg.Body.IsEncrypted() {
		return ErrBodyAlreadyEncrypted
	}
	plainBody := Body{Data: msg.Body.Data, InternalMetadata: msg.Body.InternalMetadata}
	serialized, err := json.Marshal(plainBody)
	if err != nil {
		return err
	}
	key, err := crypto.DH(selfEncSK, destEncPK)
	if err != nil {
		return err
	}
	sealed, err := crypto.Encrypt(serialized, key[:])
	if err != nil {
		return err
	}
	msg.Body = Body{Content: encryptedPrefix + hex.EncodeToString(sealed)}
	return nil
}

// DecryptOuter reverses EncryptOuter, restoring the Plain body. The
// message's declared Encryption field is checked against the body's
// content shape before any unseal is attempted: a body that looks
// encrypted but is declared EncryptionNone (or vice versa) is rejected
// outright rather than fed to the DH+AEAD path.
func DecryptOuter(msg *Message, selfEncSK crypto.EncryptionKeyPair, peerEncPK [32]byte) error {
	encrypted := msg.Body.IsEncrypted()
	if msg.Encryption == EncryptionNone && encrypted {
		return ErrEncryptionFieldMismatch
	}
	if !encrypted {
		return ErrBodyNotEncrypted
	}
	if msg.Encryption != EncryptionX25519ChaCha20Poly1305 {
		return ErrEncryptionFieldMismatch
	}
	sealed, err := decodeSealed(msg.Body.Content)
	if err != nil {
		return err
	}
	key, err := crypto.DH(selfEncSK, peerEncPK)
	if err != nil {
		return err
	}
	plaintext, err := crypto.Decrypt(sealed, key[:])
	if err != nil {
		return err
	}
	var body Body
	if err := json.Unmarshal(plaintext, &body); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	msg.Body = body
	return nil
}

// EncryptInner seals Body.Data.RawContent and Data.SchemaType together,
// length-prefixed so the schema can be recovered without touching
// RawContent first. InternalMetadata is left untouched and visible.
func EncryptInner(msg *Message, selfEncSK crypto.EncryptionKeyPair, destEncPK [32]byte) error {
	if msg.Body.IsEncrypted() {
		return ErrBodyAlreadyEncrypted
	}
	if msg.Body.Data.IsEncrypted() {
		return ErrBodyAlreadyEncrypted
	}
	content := []byte(msg.Body.Data.RawContent)
	schema := []byte(msg.Body.Data.SchemaType)

	key, err := crypto.DH(selfEncSK, destEncPK)
	if err != nil {
		return err
	}
	sealed, err := crypto.Encrypt(append(append([]byte{}, content...), schema...), key[:])
	if err != nil {
		return err
	}

	framed := make([]byte, 16+len(sealed))
	binary.LittleEndian.PutUint64(framed[0:8], uint64(len(content)))
	binary.LittleEndian.PutUint64(framed[8:16], uint64(len(schema)))
	copy(framed[16:], sealed)

	msg.Body.Data = Data{Content: encryptedPrefix + hex.EncodeToString(framed)}
	return nil
}

// DecryptInner reverses EncryptInner, restoring RawContent and SchemaType.
// Like DecryptOuter, it checks the inner layer's declared Encryption
// field before attempting to unseal.
func DecryptInner(msg *Message, selfEncSK crypto.EncryptionKeyPair, peerEncPK [32]byte) error {
	encrypted := msg.Body.Data.IsEncrypted()
	innerEncryption := msg.Body.InternalMetadata.Encryption
	if innerEncryption == EncryptionNone && encrypted {
		return ErrEncryptionFieldMismatch
	}
	if !encrypted {
		return ErrBodyNotEncrypted
	}
	if innerEncryption != EncryptionX25519ChaCha20Poly1305 {
		return ErrEncryptionFieldMismatch
	}
	framed, err := decodeSealed(msg.Body.Data.Content)
	if err != nil {
		return err
	}
	if len(framed) < 16 {
		return ErrMalformedCiphertext
	}
	lenContent := binary.LittleEndian.Uint64(framed[0:8])
	lenSchema := binary.LittleEndian.Uint64(framed[8:16])
	sealed := framed[16:]

	key, err := crypto.DH(selfEncSK, peerEncPK)
	if err != nil {
		return err
	}
	plaintext, err := crypto.Decrypt(sealed, key[:])
	if err != nil {
		return err
	}
	if uint64(len(plaintext)) != lenContent+lenSchema {
		return ErrMalformedCiphertext
	}
	msg.Body.Data = Data{
		RawContent: string(plaintext[:lenContent]),
		SchemaType: string(plaintext[lenContent : lenContent+lenSchema]),
	}
	return nil
}

func decodeSealed(content string) ([]byte, error) {
	hexPart := content[len(encryptedPrefix):]
	raw, err := hex.DecodeString(hexPart)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	return raw, nil
}
