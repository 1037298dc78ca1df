package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"gopkg.inshopline.com/commons/xlsguard"
)

var errCheckFailed = errors.New("one or more files could not be classified")

// fileReport is the printable form of one classification.
type fileReport struct {
	File     string             `json:"file" yaml:"file"`
	Format   string             `json:"format,omitempty" yaml:"format,omitempty"`
	Status   string             `json:"status" yaml:"status"`
	Scheme   string             `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	DocID    string             `json:"doc_id,omitempty" yaml:"doc_id,omitempty"`
	Salt     string             `json:"salt,omitempty" yaml:"salt,omitempty"`
	SaltHash string             `json:"salt_hash,omitempty" yaml:"salt_hash,omitempty"`
	Book     *xlsguard.BookInfo `json:"book,omitempty" yaml:"book,omitempty"`
	Sheets   []string           `json:"sheets,omitempty" yaml:"sheets,omitempty"`
	Error    string             `json:"error,omitempty" yaml:"error,omitempty"`
}

func newCheckCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE...",
		Short: "Report the protection status of each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(v)
			if err != nil {
				return err
			}
			log := cfg.logger()
			log.Err = cmd.ErrOrStderr()
			log.Out = cmd.ErrOrStderr()

			opts := &xlsguard.Options{MaxRecordSize: cfg.MaxRecordSize}
			reports := make([]fileReport, 0, len(args))
			failed := false

			for _, path := range args {
				log.Infof("checking %s", path)
				rep, err := xlsguard.ClassifyFile(path, opts)
				fr := newFileReport(path, rep, err)
				if err != nil {
					failed = true
					log.Errorf("%s: %v", path, err)
				} else {
					log.Debugf("%s: %s %s", path, fr.Format, fr.Status)
					if fp := rep.Result.FilePass; fp != nil && !fp.Supported() {
						log.Warnf("%s: %s encryption parameters are not decoded", path, fp.Type)
					}
				}
				reports = append(reports, fr)
			}

			if err := writeReports(cmd.OutOrStdout(), cfg.Output, reports); err != nil {
				return err
			}
			if failed {
				return errCheckFailed
			}
			return nil
		},
	}
}

func newFileReport(path string, rep *xlsguard.Report, err error) fileReport {
	fr := fileReport{File: path, Status: "error"}
	if err != nil {
		fr.Error = err.Error()
	}
	if rep == nil {
		return fr
	}

	fr.Format = string(rep.Format)
	fr.Scheme = rep.Scheme
	fr.Sheets = rep.SheetNames
	fr.DocID = rep.DocID()
	if res := rep.Result; res != nil {
		fr.Status = res.Status.String()
		if res.Info.BIFFVersion != 0 {
			info := res.Info
			fr.Book = &info
		}
		if fp := res.FilePass; fp != nil && fp.Supported() {
			fr.Salt = hex.EncodeToString(fp.Salt[:])
			fr.SaltHash = hex.EncodeToString(fp.SaltHash[:])
		}
	}
	return fr
}

func writeReports(w io.Writer, format string, reports []fileReport) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(reports)
	}

	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%s", r.File, statusColor(r.Status)(r.Status), r.Format)
		if r.Scheme != "" {
			fmt.Fprintf(w, "\t%s", r.Scheme)
		}
		if r.DocID != "" {
			fmt.Fprintf(w, "\tdoc-id=%s", r.DocID)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func statusColor(status string) func(format string, a ...interface{}) string {
	switch status {
	case xlsguard.StatusProtected.String():
		return color.YellowString
	case xlsguard.StatusNotProtected.String():
		return color.GreenString
	}
	return color.RedString
}
