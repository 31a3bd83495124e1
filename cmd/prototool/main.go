package main

import (
	"encoding/base64"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	internalProto "devconnect/internal/proto"
)

// 在 JSON 与 WebSocket 二进制帧之间转换, 便于手动调试
//
//	echo '{"type":"message:send","recipient_id":2,"content":"hi"}' | prototool -mode encode
//	echo '<hex>' | prototool -mode decode
func main() {
	mode := flag.String("mode", "encode", "Mode: 'encode' or 'decode'")
	inputFormat := flag.String("in", "hex", "Binary input format for decode: 'hex' or 'base64'")
	outputFormat := flag.String("out", "hex", "Binary output format for encode: 'hex' or 'base64'")
	flag.Parse()

	inputData, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
		os.Exit(1)
	}

	inputStr := strings.TrimSpace(string(inputData))

	switch *mode {
	case "encode":
		err = encode(inputStr, *outputFormat)
	case "decode":
		err = decode(inputStr, *inputFormat)
	default:
		err = fmt.Errorf("invalid mode: %s. Use 'encode' or 'decode'", *mode)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// Encodes JSON input to a binary frame (Hex or Base64)
func encode(jsonInput string, outputFormat string) error {
	binaryData, err := internalProto.FromJSON([]byte(jsonInput))
	if err != nil {
		return fmt.Errorf("error encoding frame: %w\nInput: %s", err, jsonInput)
	}

	switch outputFormat {
	case "hex":
		fmt.Println(hex.EncodeToString(binaryData))
	case "base64":
		fmt.Println(base64.StdEncoding.EncodeToString(binaryData))
	default:
		return fmt.Errorf("invalid output format: %s. Use 'hex' or 'base64'", outputFormat)
	}
	return nil
}

// Decodes a binary frame (Hex or Base64) to JSON
func decode(input string, inputFormat string) error {
	var binaryData []byte
	var err error

	switch inputFormat {
	case "hex":
		binaryData, err = hex.DecodeString(input)
	case "base64":
		binaryData, err = base64.StdEncoding.DecodeString(input)
	default:
		return fmt.Errorf("invalid input format: %s. Use 'hex' or 'base64'", inputFormat)
	}
	if err != nil {
		return fmt.Errorf("error decoding input string (%s): %w", inputFormat, err)
	}

	jsonOutput, err := internalProto.ToJSON(binaryData)
	if err != nil {
		return fmt.Errorf("error decoding frame: %w", err)
	}
	fmt.Println(string(jsonOutput))
	return nil
}
