package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/urfave/cli/v2"
)

var (
	send = cli.Command{
		Name:  "send",
		Usage: "make a private transfer to a recipient",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "recipient",
				Usage:    "the address receiving the funds",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "amount",
				Usage:    "the amount to transfer, ie. 0.1",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "privacy_level",
				Usage: "the privacy level of the transfer: basic, advanced or maximum",
				Value: "basic",
			},
			&cli.StringFlag{
				Name:  "memo",
				Usage: "an optional note attached to the transfer",
			},
			&cli.BoolFlag{
				Name:  "async",
				Usage: "return the transfer id without waiting for the final status",
			},
		},
		Action: sendAction,
	}

	status = cli.Command{
		Name:  "status",
		Usage: "get the status of a transfer",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "id",
				Usage:    "the id of the transfer",
				Required: true,
			},
		},
		Action: statusAction,
	}

	cancel = cli.Command{
		Name:  "cancel",
		Usage: "cancel a transfer in progress",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "id",
				Usage:    "the id of the transfer",
				Required: true,
			},
		},
		Action: cancelAction,
	}

	transfers = cli.Command{
		Name:  "transfers",
		Usage: "list all transfers, optionally filtered by wallet session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "session",
				Usage: "the id of the wallet session",
			},
		},
		Action: listTransfersAction,
	}

	profiles = cli.Command{
		Name:   "profiles",
		Usage:  "list the features and costs of every privacy level",
		Action: listProfilesAction,
	}

	stranded = cli.Command{
		Name:  "stranded",
		Usage: "list the funds left at intermediate addresses by partially failed transfers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "id",
				Usage: "the id of the transfer, to show only its stranded funds",
			},
		},
		Action: strandedAction,
	}
)

func sendAction(ctx *cli.Context) error {
	resp, err := doRequest(http.MethodPost, "/v1/transfers", map[string]interface{}{
		"recipient":     ctx.String("recipient"),
		"amount":        ctx.String("amount"),
		"privacy_level": ctx.String("privacy_level"),
		"memo":          ctx.String("memo"),
		"async":         ctx.Bool("async"),
	})
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

func statusAction(ctx *cli.Context) error {
	resp, err := doRequest(
		http.MethodGet, fmt.Sprintf("/v1/transfers/%s", ctx.String("id")), nil,
	)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

func cancelAction(ctx *cli.Context) error {
	resp, err := doRequest(
		http.MethodPost, fmt.Sprintf("/v1/transfers/%s/cancel", ctx.String("id")), nil,
	)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

func listTransfersAction(ctx *cli.Context) error {
	path := "/v1/transfers"
	if session := ctx.String("session"); session != "" {
		path += "?session=" + url.QueryEscape(session)
	}
	resp, err := doRequest(http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

func listProfilesAction(_ *cli.Context) error {
	resp, err := doRequest(http.MethodGet, "/v1/profiles", nil)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

func strandedAction(ctx *cli.Context) error {
	path := "/v1/stranded"
	if id := ctx.String("id"); id != "" {
		path = fmt.Sprintf("%s/%s", path, id)
	}
	resp, err := doRequest(http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}
