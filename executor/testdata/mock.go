//go:build wasip1

// Mock interpreter for testing session plumbing without a real Python.
// Build with: GOOS=wasip1 GOARCH=wasm go build -o mock.wasm mock.go
//
// Every exec command echoes its code to stdout. Code starting with
// "raise " reports the rest as an error; code equal to "call time_now"
// performs a host call and prints whether it got data back.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

func main() {
	fmt.Fprint(os.Stderr, "\x00GORU_READY\x00")

	in := bufio.NewReader(os.Stdin)
	for {
		line, err := in.ReadString('\n')
		if err != nil {
			return
		}

		var cmd struct {
			Type string `json:"type"`
			Code string `json:"code"`
		}
		if err := json.Unmarshal([]byte(line), &cmd); err != nil {
			continue
		}

		switch {
		case cmd.Type == "exit":
			return
		case cmd.Type != "exec":
			continue
		case strings.HasPrefix(cmd.Code, "raise "):
			fmt.Fprintf(os.Stderr, "\x00GORU_ERROR:%s\x00", strings.TrimPrefix(cmd.Code, "raise "))
		case cmd.Code == "call time_now":
			fmt.Fprint(os.Stderr, "\x00GORU:{\"fn\":\"time_now\",\"args\":{}}\x00")
			resp, _ := in.ReadString('\n')
			var r struct {
				Data  any    `json:"data"`
				Error string `json:"error"`
			}
			json.Unmarshal([]byte(resp), &r)
			fmt.Printf("host data=%v error=%q\n", r.Data != nil, r.Error)
			fmt.Fprint(os.Stderr, "\x00GORU_DONE\x00")
		default:
			fmt.Print(cmd.Code)
			fmt.Fprint(os.Stderr, "\x00GORU_DONE\x00")
		}
	}
}
