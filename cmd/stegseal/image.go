package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	stegseal "github.com/stegseal/stegseal-go"
)

var (
	inFlag = &cli.StringFlag{
		Name:     "in",
		Required: true,
		Usage:    "input image path, or - for stdin",
	}
	outFlag = &cli.StringFlag{
		Name:     "out",
		Required: true,
		Usage:    "output PNG path, or - for stdout",
	}
)

var hideCommand = &cli.Command{
	Name:  "hide",
	Usage: "Encrypt a message to a recipient and hide it in an image",
	Flags: []cli.Flag{
		inFlag,
		outFlag,
		&cli.StringFlag{Name: "recipient", Aliases: []string{"r"}, Usage: "recipient identity in the key store"},
		&cli.StringFlag{Name: "recipient-key", Usage: "recipient public key, hex or base64"},
		&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "message text"},
		&cli.StringFlag{Name: "message-file", Usage: "read the message from a file"},
		&cli.StringFlag{Name: "mode", Value: "none", Usage: "visual mode: none, matrix, glitch, pixel_sort or full"},
		&cli.BoolFlag{Name: "watermark", Usage: "stamp a watermark before embedding"},
		&cli.StringFlag{Name: "watermark-text", Usage: "custom watermark text, implies --watermark"},
		&cli.BoolFlag{Name: "scramble", Usage: "attach fabricated camera metadata"},
	},
	Action: func(cCtx *cli.Context) error {
		message, err := readMessage(cCtx)
		if err != nil {
			return err
		}

		cover, err := readInput(cCtx, cCtx.String(inFlag.Name))
		if err != nil {
			return err
		}

		env, err := setup(cCtx)
		if err != nil {
			return err
		}
		defer env.close()

		opts := []stegseal.HideOption{
			stegseal.WithVisualMode(cCtx.String("mode")),
			stegseal.WithWatermark(cCtx.Bool("watermark")),
			stegseal.WithScrambledMetadata(cCtx.Bool("scramble")),
		}
		if text := cCtx.String("watermark-text"); text != "" {
			opts = append(opts, stegseal.WithWatermarkText(text))
		}

		var out []byte
		switch {
		case cCtx.IsSet("recipient-key"):
			pk, err := stegseal.ParsePublicKey(cCtx.String("recipient-key"))
			if err != nil {
				return err
			}
			out, err = env.pipeline.HideMessage(cCtx.Context, message, pk, cover, opts...)
			if err != nil {
				return err
			}
		case cCtx.IsSet("recipient"):
			out, err = env.pipeline.HideFor(cCtx.Context, env.store, cCtx.String("recipient"), message, cover, opts...)
			if err != nil {
				return err
			}
		default:
			return errors.New("one of --recipient or --recipient-key is required")
		}

		if err := writeOutput(cCtx, cCtx.String(outFlag.Name), out); err != nil {
			return err
		}
		env.log.Info("Message hidden", "out", cCtx.String(outFlag.Name), "bytes", len(message), "suite", env.pipeline.Suite())
		return nil
	},
}

var revealCommand = &cli.Command{
	Name:  "reveal",
	Usage: "Extract and decrypt a hidden message",
	Flags: []cli.Flag{
		inFlag,
		&cli.StringFlag{Name: "identity", Aliases: []string{"i"}, Usage: "identity whose key opens the message"},
		&cli.StringFlag{Name: "private-key", Usage: "private key, hex or base64, instead of --identity"},
		&cli.StringFlag{Name: "out", Value: "-", Usage: "write the message to a file instead of stdout"},
	},
	Action: func(cCtx *cli.Context) error {
		stego, err := readInput(cCtx, cCtx.String(inFlag.Name))
		if err != nil {
			return err
		}

		env, err := setup(cCtx)
		if err != nil {
			return err
		}
		defer env.close()

		var msg []byte
		switch {
		case cCtx.IsSet("private-key"):
			kp, err := stegseal.ParsePrivateKey(cCtx.String("private-key"))
			if err != nil {
				return err
			}
			msg, err = env.pipeline.RevealMessage(cCtx.Context, stego, kp)
			if err != nil {
				return err
			}
		case cCtx.IsSet("identity"):
			msg, err = env.pipeline.RevealAs(cCtx.Context, env.store, cCtx.String("identity"), stego)
			if err != nil {
				return err
			}
		default:
			return errors.New("one of --identity or --private-key is required")
		}

		out := cCtx.String("out")
		if out == "-" && len(msg) > 0 && msg[len(msg)-1] != '\n' {
			msg = append(msg, '\n')
		}
		return writeOutput(cCtx, out, msg)
	},
}

var scanCommand = &cli.Command{
	Name:  "scan",
	Usage: "Look for a hidden message and report what was found",
	Flags: []cli.Flag{
		inFlag,
		&cli.StringFlag{Name: "identity", Aliases: []string{"i"}, Usage: "try to decrypt with this identity's key"},
	},
	Action: func(cCtx *cli.Context) error {
		img, err := readInput(cCtx, cCtx.String(inFlag.Name))
		if err != nil {
			return err
		}

		env, err := setup(cCtx)
		if err != nil {
			return err
		}
		defer env.close()

		var kp *stegseal.KeyPair
		if identity := cCtx.String("identity"); identity != "" {
			if kp, err = stegseal.LookupKeyPair(cCtx.Context, env.store, identity); err != nil {
				return err
			}
		}

		res, err := env.pipeline.Scan(cCtx.Context, img, kp)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cCtx.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

var capacityCommand = &cli.Command{
	Name:  "capacity",
	Usage: "Print how many plaintext bytes an image can carry",
	Flags: []cli.Flag{inFlag},
	Action: func(cCtx *cli.Context) error {
		img, err := readInput(cCtx, cCtx.String(inFlag.Name))
		if err != nil {
			return err
		}

		env, err := setup(cCtx)
		if err != nil {
			return err
		}
		defer env.close()

		n, err := env.pipeline.Capacity(cCtx.Context, img)
		if err != nil {
			return err
		}
		fmt.Fprintln(cCtx.App.Writer, n)
		return nil
	},
}

var stripCommand = &cli.Command{
	Name:   "strip",
	Usage:  "Remove all metadata from an image",
	Flags:  []cli.Flag{inFlag, outFlag},
	Action: transformAction(func(env *cmdEnv, cCtx *cli.Context, img []byte) ([]byte, error) {
		return env.pipeline.StripMetadata(cCtx.Context, img)
	}),
}

var scrambleCommand = &cli.Command{
	Name:   "scramble",
	Usage:  "Replace image metadata with fabricated values",
	Flags:  []cli.Flag{inFlag, outFlag},
	Action: transformAction(func(env *cmdEnv, cCtx *cli.Context, img []byte) ([]byte, error) {
		return env.pipeline.ScrambleMetadata(cCtx.Context, img)
	}),
}

var effectCommand = &cli.Command{
	Name:  "effect",
	Usage: "Apply a visual mode without hiding anything",
	Flags: []cli.Flag{
		inFlag,
		outFlag,
		&cli.StringFlag{Name: "mode", Required: true, Usage: "visual mode: none, matrix, glitch, pixel_sort or full"},
		&cli.BoolFlag{Name: "watermark", Usage: "stamp a watermark"},
	},
	Action: transformAction(func(env *cmdEnv, cCtx *cli.Context, img []byte) ([]byte, error) {
		return env.pipeline.ApplyVisualEffect(cCtx.Context, img, cCtx.String("mode"), cCtx.Bool("watermark"))
	}),
}

func transformAction(fn func(*cmdEnv, *cli.Context, []byte) ([]byte, error)) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		img, err := readInput(cCtx, cCtx.String(inFlag.Name))
		if err != nil {
			return err
		}

		env, err := setup(cCtx)
		if err != nil {
			return err
		}
		defer env.close()

		out, err := fn(env, cCtx, img)
		if err != nil {
			return err
		}
		return writeOutput(cCtx, cCtx.String(outFlag.Name), out)
	}
}

func readMessage(cCtx *cli.Context) ([]byte, error) {
	switch {
	case cCtx.IsSet("message") && cCtx.IsSet("message-file"):
		return nil, errors.New("--message and --message-file are mutually exclusive")
	case cCtx.IsSet("message-file"):
		return os.ReadFile(cCtx.String("message-file"))
	case cCtx.IsSet("message"):
		return []byte(cCtx.String("message")), nil
	default:
		return nil, errors.New("one of --message or --message-file is required")
	}
}
