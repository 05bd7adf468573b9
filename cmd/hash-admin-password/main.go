// hash-admin-password prints the bcrypt hash to put in ADMIN_PASSWORD_HASH.
//
// Usage:
//   go run ./cmd/hash-admin-password 'the-password'
//   echo -n 'the-password' | go run ./cmd/hash-admin-password
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/lms_backend/utils"
)

func main() {
	var password string
	if len(os.Args) > 1 {
		password = os.Args[1]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(os.Stderr, "password required as argument or on stdin")
			os.Exit(2)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		fmt.Fprintln(os.Stderr, "empty password")
		os.Exit(2)
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(hashed))
}
