package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperpredict/pkg/api"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/oracle"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/outcome"
	"github.com/uhyunpark/hyperpredict/pkg/crypto"
)

func main() {
	scheme := flag.String("scheme", crypto.SchemeEIP712, "signature scheme: eip712|bls")
	keyHex := flag.String("key", "", "validator private key (hex, eip712); a new key is generated if empty")
	seedHex := flag.String("seed", "", "validator key seed (hex, bls, at least 32 bytes)")
	marketID := flag.String("market", "", "market id")
	outcomeFlag := flag.String("outcome", "", "YES|NO|VOID")
	evidence := flag.String("evidence", "", "evidence string")
	chainID := flag.Int64("chain-id", 1337, "EIP-712 domain chain id")
	contract := flag.String("contract", "", "EIP-712 verifying contract address")
	post := flag.String("post", "", "node API base URL; when set the verdict is submitted")
	flag.Parse()

	if *marketID == "" {
		fatalf("-market is required")
	}
	o, err := outcome.Parse(*outcomeFlag)
	if err != nil {
		fatalf("outcome: %v", err)
	}
	if o == outcome.None {
		fatalf("-outcome must be YES, NO or VOID")
	}

	req := api.VerdictRequest{Outcome: o, Evidence: *evidence}
	payload := oracle.Payload{MarketID: *marketID, Outcome: o, Evidence: *evidence}

	switch strings.ToLower(*scheme) {
	case crypto.SchemeEIP712:
		signer, err := loadSigner(*keyHex)
		if err != nil {
			fatalf("key: %v", err)
		}
		domain := crypto.DefaultDomain()
		domain.ChainID = big.NewInt(*chainID)
		if *contract != "" {
			if !common.IsHexAddress(*contract) {
				fatalf("invalid contract address %q", *contract)
			}
			domain.VerifyingContract = common.HexToAddress(*contract)
		}
		eip := crypto.NewEIP712Signer(domain)
		v := &crypto.VerdictEIP712{MarketID: *marketID, Outcome: o, Evidence: *evidence}
		sig, err := eip.SignVerdict(signer, v)
		if err != nil {
			fatalf("sign: %v", err)
		}
		// Self-check against the verifier a node would use.
		if !crypto.NewVerdictVerifier(domain).Verify(signer.Address().Hex(), payload.Bytes(), sig) {
			fatalf("signature does not verify")
		}
		req.Validator = signer.Address().Hex()
		req.Signature = sig
		fmt.Fprintf(os.Stderr, "validator: %s\n", req.Validator)

	case crypto.SchemeBLS:
		seed, err := hex.DecodeString(strings.TrimPrefix(*seedHex, "0x"))
		if err != nil {
			fatalf("seed: %v", err)
		}
		signer, err := crypto.NewBLSSignerFromSeed(seed)
		if err != nil {
			fatalf("seed: %v", err)
		}
		req.Validator = signer.ValidatorID()
		req.Signature = signer.Sign(payload.Bytes())
		fmt.Fprintf(os.Stderr, "validator: %s\n", req.Validator)

	default:
		fatalf("unknown scheme %q", *scheme)
	}

	body, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		fatalf("encode: %v", err)
	}
	fmt.Println(string(body))

	if *post == "" {
		return
	}
	url := fmt.Sprintf("%s/api/v1/markets/%s/verdicts", strings.TrimRight(*post, "/"), *marketID)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	fmt.Fprintf(os.Stderr, "%s %s\n", resp.Status, strings.TrimSpace(string(out)))
	if resp.StatusCode >= 300 {
		os.Exit(1)
	}
}

func loadSigner(keyHex string) (*crypto.Signer, error) {
	if keyHex != "" {
		return crypto.FromPrivateKeyHex(keyHex)
	}
	signer, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "generated key: %s (KEEP SECRET!)\n", signer.PrivateKeyHex())
	return signer, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
