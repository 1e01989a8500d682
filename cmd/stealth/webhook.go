package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/urfave/cli/v2"
)

var (
	topicFlag = &cli.StringFlag{
		Name: "topic",
		Usage: "the events the webhook is notified of: TRANSFER_UPDATED (every " +
			"status change), TRANSFER_SETTLED, TRANSFER_STRANDED or * for all",
		Value: "*",
	}

	webhook = cli.Command{
		Name:  "webhook",
		Usage: "add or remove webhooks",
		Subcommands: []*cli.Command{
			webhookAddCmd, webhookRemoveCmd,
		},
	}
	listwebhooks = cli.Command{
		Name:  "webhooks",
		Usage: "list all webhooks, optionally filtered by topic",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "topic",
				Usage: "the topic to filter webhooks by",
			},
		},
		Action: listWebhooksAction,
	}

	webhookAddCmd = &cli.Command{
		Name:  "add",
		Usage: "add a (secured) webhook endpoint called whenever a transfer event occurs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "endpoint",
				Usage:    "the webhook endpoint to be called whenever the target event occurs",
				Required: true,
			},
			&cli.StringFlag{
				Name: "secret",
				Usage: "the eventual secret to use to sign a jwt token for " +
					"authenticating requests to the webhook endpoint",
			},
			topicFlag,
		},
		Action: addWebhookAction,
	}

	webhookRemoveCmd = &cli.Command{
		Name:  "remove",
		Usage: "remove a webhook",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "id",
				Usage:    "the id of the webhook to remove",
				Required: true,
			},
		},
		Action: removeWebhookAction,
	}
)

func addWebhookAction(ctx *cli.Context) error {
	resp, err := doRequest(http.MethodPost, "/v1/webhooks", map[string]string{
		"topic":    ctx.String("topic"),
		"endpoint": ctx.String("endpoint"),
		"secret":   ctx.String("secret"),
	})
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

func removeWebhookAction(ctx *cli.Context) error {
	id := ctx.String("id")
	if _, err := doRequest(
		http.MethodDelete, fmt.Sprintf("/v1/webhooks/%s", id), nil,
	); err != nil {
		return err
	}

	fmt.Printf("removed webhook with id: %s\n", id)
	return nil
}

func listWebhooksAction(ctx *cli.Context) error {
	path := "/v1/webhooks"
	if topic := ctx.String("topic"); topic != "" {
		path += "?topic=" + url.QueryEscape(topic)
	}
	resp, err := doRequest(http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}
