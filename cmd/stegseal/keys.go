package main

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	stegseal "github.com/stegseal/stegseal-go"
)

var identityFlag = &cli.StringFlag{
	Name:     "identity",
	Aliases:  []string{"i"},
	Required: true,
	Usage:    "key store identity",
}

var keygenCommand = &cli.Command{
	Name:  "keygen",
	Usage: "Generate and store a key pair for an identity",
	Flags: []cli.Flag{
		identityFlag,
		&cli.BoolFlag{Name: "rotate", Usage: "replace an existing key pair"},
		&cli.BoolFlag{Name: "show-private", Usage: "print the private key as hex"},
	},
	Action: func(cCtx *cli.Context) error {
		env, err := setup(cCtx)
		if err != nil {
			return err
		}
		defer env.close()

		identity := cCtx.String(identityFlag.Name)

		var (
			kp      *stegseal.KeyPair
			created = true
		)
		if cCtx.Bool("rotate") {
			if kp, err = stegseal.GenerateKeyPair(); err != nil {
				return err
			}
			err = env.store.Put(cCtx.Context, identity, kp)
		} else {
			kp, created, err = stegseal.EnsureKeyPair(cCtx.Context, env.store, identity)
		}
		if err != nil {
			return err
		}

		if created {
			env.log.Info("Key pair stored", "identity", identity)
		} else {
			env.log.Info("Key pair already exists", "identity", identity)
		}

		fmt.Fprintln(cCtx.App.Writer, kp.PublicKeyB64())
		if cCtx.Bool("show-private") {
			fmt.Fprintln(cCtx.App.Writer, hex.EncodeToString(kp.PrivateKey[:]))
		}
		return nil
	},
}

var pubkeyCommand = &cli.Command{
	Name:  "pubkey",
	Usage: "Print the public key of an identity",
	Flags: []cli.Flag{
		identityFlag,
		&cli.BoolFlag{Name: "hex", Usage: "print hex instead of base64"},
	},
	Action: func(cCtx *cli.Context) error {
		env, err := setup(cCtx)
		if err != nil {
			return err
		}
		defer env.close()

		kp, err := stegseal.LookupKeyPair(cCtx.Context, env.store, cCtx.String(identityFlag.Name))
		if err != nil {
			return err
		}

		if cCtx.Bool("hex") {
			fmt.Fprintln(cCtx.App.Writer, hex.EncodeToString(kp.PublicKey[:]))
		} else {
			fmt.Fprintln(cCtx.App.Writer, kp.PublicKeyB64())
		}
		return nil
	},
}

var keysCommand = &cli.Command{
	Name:  "keys",
	Usage: "List stored identities",
	Action: func(cCtx *cli.Context) error {
		env, err := setup(cCtx)
		if err != nil {
			return err
		}
		defer env.close()

		entries, err := env.store.List(cCtx.Context)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintf(cCtx.App.Writer, "%s\t%s\t%s\n", e.Identity, e.PublicKeyB64(), e.CreatedAt.UTC().Format(time.RFC3339))
		}
		return nil
	},
}

var delkeyCommand = &cli.Command{
	Name:  "delkey",
	Usage: "Delete the key pair of an identity",
	Flags: []cli.Flag{identityFlag},
	Action: func(cCtx *cli.Context) error {
		env, err := setup(cCtx)
		if err != nil {
			return err
		}
		defer env.close()

		identity := cCtx.String(identityFlag.Name)
		if err := env.store.Delete(cCtx.Context, identity); err != nil {
			return err
		}
		env.log.Info("Key pair deleted", "identity", identity)
		return nil
	},
}
