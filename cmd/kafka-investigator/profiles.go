package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kafka-investigator/kafka-investigator/internal/config"
	"github.com/kafka-investigator/kafka-investigator/internal/console"
	"github.com/kafka-investigator/kafka-investigator/internal/schema"
	"github.com/kafka-investigator/kafka-investigator/pkg/errors"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List connections, schema registries and consumer profiles from the config file",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printProfiles(console.New(os.Stdin, cmd.OutOrStdout()), cfg)
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema ID",
	Short: "Fetch a schema by id from a schema registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 32)
		if err != nil {
			return errors.Wrap(errors.ErrCodeUserInput, fmt.Sprintf("invalid schema id %q", args[0]), err)
		}
		name, _ := cmd.Flags().GetString("schema-registry")
		url, _ := cmd.Flags().GetString("schema-registry-url")
		return fetchSchema(cmd.Context(), console.New(os.Stdin, cmd.OutOrStdout()), cfg, name, url, int32(id))
	},
}

func init() {
	schemaCmd.Flags().String("schema-registry", "", "schema registry name from the config file (default registry if empty)")
	schemaCmd.Flags().String("schema-registry-url", "", "schema registry url, overrides --schema-registry")
}

func printProfiles(con *console.Console, cfg *config.Config) {
	con.Title("Connections")
	rows := make([][]string, 0, len(cfg.Connections))
	for _, c := range cfg.Connections {
		rows = append(rows, []string{c.Name, defaultMark(c.Default), strings.Join(c.Brokers, ","), firstNonEmpty(c.SASL.Mechanism, "none"), c.SASL.Username})
	}
	con.Table([]string{"Name", "Default", "Brokers", "SASL", "User"}, rows)

	con.Title("Schema registries")
	rows = rows[:0]
	for _, r := range cfg.SchemaRegistries {
		rows = append(rows, []string{r.Name, defaultMark(r.Default), r.URL, r.Username})
	}
	con.Table([]string{"Name", "Default", "URL", "User"}, rows)

	con.Title("Consumer profiles")
	rows = rows[:0]
	for _, p := range cfg.ConsumerProfiles {
		registry := ""
		if p.UseSchemaRegistry {
			registry = firstNonEmpty(p.SchemaRegistry, "(default)")
		}
		rows = append(rows, []string{p.Name, firstNonEmpty(p.Connection, "(default)"), p.Topic, p.GroupID, firstNonEmpty(p.OffsetReset, "earliest"), registry})
	}
	con.Table([]string{"Name", "Connection", "Topic", "Group", "Reset", "Schema registry"}, rows)
}

func defaultMark(d bool) string {
	if d {
		return "*"
	}
	return ""
}

func fetchSchema(ctx context.Context, con *console.Console, cfg *config.Config, name, url string, id int32) error {
	var regCfg config.SchemaRegistryConfig
	if url != "" {
		regCfg = config.SchemaRegistryConfig{Name: "command-line", URL: url}
	} else {
		reg, ok := cfg.SchemaRegistry(name)
		if !ok {
			return errors.New(errors.ErrCodeConfigValidate, fmt.Sprintf("schema registry %q not found", name))
		}
		regCfg = *reg
	}

	fetcher, err := schema.NewFetcher(regCfg)
	if err != nil {
		return err
	}
	defer fetcher.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	s, err := fetcher.GetSchema(ctx, id)
	if err != nil {
		return err
	}

	con.Title(fmt.Sprintf("Schema %d (%s) from [%s]", s.ID, s.Type, regCfg.Name))
	if s.Type == schema.TypeProtobuf {
		con.Println(s.Text)
		return nil
	}
	con.JSON([]byte(s.Text))
	return nil
}
