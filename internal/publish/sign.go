package publish

import (
	"fmt"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
)

// ClearsignFile produces a clearsigned copy of inPath at outPath using the
// first signing-capable key in the armored keyring at keyPath.
func ClearsignFile(keyPath, inPath, outPath string) error {
	keyFile, err := os.Open(keyPath)
	if err != nil {
		return fmt.Errorf("opening signing key %s: %w", keyPath, err)
	}
	defer keyFile.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(keyFile)
	if err != nil {
		return fmt.Errorf("loading signing keyring: %w", err)
	}

	var signer *openpgp.Entity
	for _, entity := range keyring {
		if entity.PrivateKey != nil && !entity.PrivateKey.Encrypted {
			signer = entity
			break
		}
	}
	if signer == nil {
		return fmt.Errorf("no usable (unencrypted) private key found in %s", keyPath)
	}

	message, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inPath, err)
	}

	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer out.Close()

	plaintext, err := clearsign.Encode(out, signer.PrivateKey, nil)
	if err != nil {
		return fmt.Errorf("starting clearsign: %w", err)
	}

	if _, err := plaintext.Write(message); err != nil {
		_ = plaintext.Close()
		return fmt.Errorf("signing %s: %w", inPath, err)
	}
	if err := plaintext.Close(); err != nil {
		return fmt.Errorf("finalizing signature: %w", err)
	}

	return nil
}
