// Command quizparse converts pasted question text into structured items.
//
//	quizparse questions.txt
//	quizparse --format yaml --check - < questions.txt
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mind-engage/quizdesk/internal/quiz"
)

func main() {
	format := pflag.StringP("format", "f", "json", "output format: json, yaml or text")
	check := pflag.BoolP("check", "c", false, "validate the parsed questions and exit 1 on problems")
	pflag.Parse()

	src := "-"
	if pflag.NArg() > 0 {
		src = pflag.Arg(0)
	}
	if err := run(src, *format, *check, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var errInvalid = errors.New("questions failed validation")

func run(src, format string, check bool, stdin io.Reader, stdout, stderr io.Writer) error {
	var (
		raw []byte
		err error
	)
	if src == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(src)
	}
	if err != nil {
		return err
	}

	items := quiz.Parse(string(raw))
	if check {
		if err := quiz.Validate(items); err != nil {
			var ve quiz.ValidationErrors
			if errors.As(err, &ve) {
				for _, m := range ve["content"] {
					fmt.Fprintln(stderr, m)
				}
			}
			return errInvalid
		}
	}

	switch format {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	case "yaml":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(items); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		_, err := fmt.Fprintln(stdout, quiz.Format(items))
		return err
	}
	return fmt.Errorf("unknown format %q", format)
}
