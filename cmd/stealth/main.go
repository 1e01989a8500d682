package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/urfave/cli/v2"
)

var (
	stealthDataDir = btcutil.AppDataDir("stealth-cli", false)
	statePath      = filepath.Join(stealthDataDir, "state.json")

	httpClient = &http.Client{Timeout: 20 * time.Minute}
)

func main() {
	app := cli.NewApp()

	app.Version = "0.1.0"
	app.Name = "stealth CLI"
	app.Usage = "Command line interface for the stealth daemon"
	app.Commands = append(
		app.Commands,
		&config,
		&profiles,
		&send,
		&status,
		&cancel,
		&transfers,
		&stranded,
		&webhook,
		&listwebhooks,
	)

	err := app.Run(os.Args)
	if err != nil {
		fatal(err)
	}
}

func getState() (map[string]string, error) {
	data := map[string]string{}

	file, err := os.ReadFile(statePath)
	if err != nil {
		return nil, errors.New("get config state error: try 'config init'")
	}
	if err := json.Unmarshal(file, &data); err != nil {
		return nil, fmt.Errorf("invalid config state: %w", err)
	}

	return data, nil
}

func setState(data map[string]string) error {
	if _, err := os.Stat(stealthDataDir); os.IsNotExist(err) {
		if err := os.MkdirAll(stealthDataDir, os.ModeDir|0755); err != nil {
			return err
		}
	}

	currentData, err := getState()
	if err != nil {
		currentData = map[string]string{}
	}

	mergedData := merge(currentData, data)

	jsonString, err := json.Marshal(mergedData)
	if err != nil {
		return err
	}
	if err := os.WriteFile(statePath, jsonString, 0644); err != nil {
		return fmt.Errorf("writing to file: %w", err)
	}

	return nil
}

func merge(maps ...map[string]string) map[string]string {
	merge := make(map[string]string, 0)
	for _, m := range maps {
		for k, v := range m {
			merge[k] = v
		}
	}
	return merge
}

func getDaemonURL() (string, error) {
	state, err := getState()
	if err != nil {
		return "", err
	}
	url, ok := state["daemon"]
	if !ok || url == "" {
		return "", errors.New("set daemon with `config set daemon <url>`")
	}
	return strings.TrimSuffix(url, "/"), nil
}

// doRequest sends a JSON request to the daemon and returns the raw JSON
// response body.
func doRequest(method, path string, body interface{}) ([]byte, error) {
	baseURL, err := getDaemonURL()
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to daemon: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(respBody, &e); err == nil && e.Message != "" {
			return nil, fmt.Errorf("%s: %s", e.Code, e.Message)
		}
		return nil, fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	return respBody, nil
}

func printRespJSON(resp []byte) {
	if len(resp) <= 0 {
		return
	}
	buf := &bytes.Buffer{}
	if err := json.Indent(buf, resp, "", "\t"); err != nil {
		fmt.Println("unable to decode response: ", err)
		return
	}
	fmt.Println(buf.String())
}

type invalidUsageError struct {
	ctx     *cli.Context
	command string
}

func (e *invalidUsageError) Error() string {
	return fmt.Sprintf("invalid usage of command %s", e.command)
}

func fatal(err error) {
	var e *invalidUsageError
	if errors.As(err, &e) {
		_ = cli.ShowCommandHelp(e.ctx, e.command)
	} else {
		_, _ = fmt.Fprintf(os.Stderr, "[stealth] %v\n", err)
	}
	os.Exit(1)
}
