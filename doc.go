// Package stegseal hides public-key encrypted messages in the low bits of
// ordinary images.
//
// A message is sealed to the recipient's X25519 public key, either with the
// NaCl anonymous sealed box or with HPKE, and the ciphertext is written one
// bit per colour sample behind a 32-bit length prefix. Output images are
// always PNG so the hidden bits survive.
//
// Basic usage:
//
//	p, err := stegseal.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	kp, err := stegseal.GenerateKeyPair()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	stego, err := p.HideMessage(ctx, []byte("meet at noon"), &kp.PublicKey, cover,
//	    stegseal.WithVisualMode("matrix"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	msg, err := p.RevealMessage(ctx, stego, kp)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println(string(msg))
//
// Keys can also be resolved per request from a KeyStore; see HideFor,
// RevealAs and the keystore package.
package stegseal
