package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/rtoval/internal/documents"
	"github.com/JaimeStill/rtoval/internal/requirements"
	"github.com/JaimeStill/rtoval/internal/results"
	"github.com/JaimeStill/rtoval/internal/sessions"
	"github.com/JaimeStill/rtoval/internal/validation"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Create and drive validation sessions",
}

var sessionsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a pending session",
	Args:  cobra.NoArgs,
	RunE:  runSessionsCreate,
}

var sessionsUploadCmd = &cobra.Command{
	Use:   "upload [session-id] [file...]",
	Short: "Upload documents to a pending session",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSessionsUpload,
}

var sessionsValidateCmd = &cobra.Command{
	Use:   "validate [session-id]",
	Short: "Queue a session for validation",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsValidate,
}

var sessionsStatusCmd = &cobra.Command{
	Use:   "status [session-id]",
	Short: "Show session state and progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsStatus,
}

var sessionsSummaryCmd = &cobra.Command{
	Use:   "summary [session-id]",
	Short: "Show the compliance summary of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsSummary,
}

var sessionsRevalidateCmd = &cobra.Command{
	Use:   "revalidate [session-id]",
	Short: "Re-run one requirement of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsRevalidate,
}

var (
	createUnit         string
	createRTO          string
	createDocumentType string
	revalidateType     string
	revalidateNumber   string
)

func init() {
	sessionsCreateCmd.Flags().StringVar(&createUnit, "unit", "", "Unit code")
	sessionsCreateCmd.Flags().StringVar(&createRTO, "rto", "", "RTO code")
	sessionsCreateCmd.Flags().StringVar(&createDocumentType, "document-type", "unit", "Document type")
	sessionsCreateCmd.MarkFlagRequired("unit")
	sessionsCreateCmd.MarkFlagRequired("rto")

	sessionsRevalidateCmd.Flags().StringVar(&revalidateType, "type", "", "Requirement type")
	sessionsRevalidateCmd.Flags().StringVar(&revalidateNumber, "number", "", "Requirement number")
	sessionsRevalidateCmd.MarkFlagRequired("type")
	sessionsRevalidateCmd.MarkFlagRequired("number")

	sessionsCmd.AddCommand(sessionsCreateCmd)
	sessionsCmd.AddCommand(sessionsUploadCmd)
	sessionsCmd.AddCommand(sessionsValidateCmd)
	sessionsCmd.AddCommand(sessionsStatusCmd)
	sessionsCmd.AddCommand(sessionsSummaryCmd)
	sessionsCmd.AddCommand(sessionsRevalidateCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsCreate(cmd *cobra.Command, args []string) error {
	in := sessions.CreateCommand{
		UnitCode:     createUnit,
		RTOCode:      createRTO,
		DocumentType: requirements.DocumentType(createDocumentType),
	}

	var s sessions.Session
	if err := newClient().post(cmd.Context(), "/sessions", in, &s); err != nil {
		return err
	}

	cmd.Println(s.ID)
	return nil
}

func runSessionsUpload(cmd *cobra.Command, args []string) error {
	c := newClient()
	fields := map[string]string{"session_id": args[0]}

	for _, file := range args[1:] {
		var doc documents.Document
		if err := c.upload(cmd.Context(), "/documents", file, fields, &doc); err != nil {
			return fmt.Errorf("upload %s: %w", file, err)
		}
		pages := "?"
		if doc.PageCount != nil {
			pages = fmt.Sprint(*doc.PageCount)
		}
		cmd.Printf("%s  %s (%d bytes, %s pages)\n", doc.ID, doc.FileName, doc.SizeBytes, pages)
	}
	return nil
}

func runSessionsValidate(cmd *cobra.Command, args []string) error {
	var s sessions.Session
	if err := newClient().post(cmd.Context(), "/sessions/"+args[0]+"/validate", nil, &s); err != nil {
		return err
	}
	cmd.Printf("%s queued (%s)\n", s.ID, s.State)
	return nil
}

func runSessionsStatus(cmd *cobra.Command, args []string) error {
	var s sessions.Session
	if err := newClient().get(cmd.Context(), "/sessions/"+args[0], nil, &s); err != nil {
		return err
	}

	cmd.Printf("Session:  %s\n", s.ID)
	cmd.Printf("Unit:     %s (RTO %s, %s)\n", s.UnitCode, s.RTOCode, s.DocumentType)
	cmd.Printf("State:    %s\n", s.State)
	cmd.Printf("Progress: %d/%d (%.1f%%)\n", s.ResultCount, s.ResultTotal, s.ProgressPercent)
	if s.ErrorReason != nil {
		cmd.Printf("Error:    %s\n", *s.ErrorReason)
	}
	return nil
}

func runSessionsSummary(cmd *cobra.Command, args []string) error {
	var sum results.Summary
	if err := newClient().get(cmd.Context(), "/sessions/"+args[0]+"/summary", nil, &sum); err != nil {
		return err
	}

	printTally := func(label string, t results.Tally) {
		cmd.Printf("%-26s %4d  met %-4d partial %-4d not met %-4d failed %-4d %5.1f%%\n",
			label, t.Total, t.Met, t.PartiallyMet, t.NotMet, t.Failed, t.CompliancePercent)
	}
	for _, tt := range sum.ByType {
		printTally(tt.Label, tt.Tally)
	}
	printTally("Overall", sum.Overall)
	return nil
}

func runSessionsRevalidate(cmd *cobra.Command, args []string) error {
	in := validation.RevalidateCommand{
		RequirementType:   requirements.Type(revalidateType),
		RequirementNumber: revalidateNumber,
	}

	var r results.Result
	if err := newClient().post(cmd.Context(), "/sessions/"+args[0]+"/revalidate", in, &r); err != nil {
		return err
	}

	cmd.Printf("%s %s: %s\n", r.RequirementType.Label(), r.RequirementNumber, r.Status)
	cmd.Println(r.Reasoning)
	return nil
}
