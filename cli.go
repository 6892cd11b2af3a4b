package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/erc7824/nitrolite/claimsigner/pkg/hash"
	"github.com/erc7824/nitrolite/claimsigner/pkg/hexbytes"
	"github.com/erc7824/nitrolite/claimsigner/pkg/log"
	"github.com/erc7824/nitrolite/claimsigner/pkg/sign"
)

func runCli(logger log.Logger, name string, args []string) {
	var err error
	switch name {
	case "generate-key":
		err = runGenerateKeyCli(os.Stdout)
	case "sign-message":
		if len(args) != 1 {
			logger.Fatal("usage: sign-message <0x-prefixed hex message>")
		}
		err = runSignMessageCli(logger, os.Stdout, args[0])
	default:
		logger.Fatal("Unknown CLI command", "name", name)
	}

	if err != nil {
		logger.Fatal("CLI command failed", "name", name, "error", err)
	}
}

// runGenerateKeyCli prints a fresh private key and its address.
func runGenerateKeyCli(out io.Writer) error {
	key, err := sign.GenerateKey()
	if err != nil {
		return err
	}
	signer, err := sign.NewEthereumSigner(key)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "SIGNER_PRIVATE_KEY=%s\n", hexutil.Encode(key))
	fmt.Fprintf(out, "address: %s\n", signer.SignerKey().Hex())
	return nil
}

// runSignMessageCli hashes message with the configured digest length and
// prints the digest and its signature.
func runSignMessageCli(logger log.Logger, out io.Writer, messageHex string) error {
	conf, err := LoadConfig(logger)
	if err != nil {
		return err
	}

	message, err := hexbytes.HexToBytes(messageHex)
	if err != nil {
		return err
	}
	return signMessage(out, conf.Signer, message)
}

func signMessage(out io.Writer, conf SignerConfig, message []byte) error {
	signer, err := conf.NewSigner()
	if err != nil {
		return err
	}
	hasher, err := hash.NewBlake3(signer.DigestLength())
	if err != nil {
		return err
	}

	digest := hasher.Sum(message)
	sig, err := signer.SignDigest(digest)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "signer: %s\n", signer.SignerKey().Hex())
	fmt.Fprintf(out, "digest: %s\n", hexbytes.BytesToHex(digest))
	fmt.Fprintf(out, "signature: %s\n", sig)
	return nil
}
