package utils

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

func PromptFrom(in io.Reader, out io.Writer, message string) (string, error) {
	reader := bufio.NewReader(in)
	fmt.Fprintf(out, "%s: ", message)
	text, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || text == "") {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Confirm asks a y/N question; anything but "y" or "yes" is a no.
func Confirm(in io.Reader, out io.Writer, message string) (bool, error) {
	answer, err := PromptFrom(in, out, message+" (y/N)")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
