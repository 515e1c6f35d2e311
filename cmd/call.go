package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/spf13/cobra"

	"github.com/s0up4200/mailmanctl/restbase"
)

var (
	callMethod string
	callData   []string
	callQuery  string
)

var callCmd = &cobra.Command{
	Use:   "call <path>",
	Short: "Send a raw request to the REST API",
	Long: `Send a raw request to the REST API and print the decoded response.
The path is resolved against the configured base URL.

  mailmanctl call lists
  mailmanctl call lists --query '$.entries[*].fqdn_listname'
  mailmanctl call domains --method POST --data mail_host=example.org`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVarP(&callMethod, "method", "X", "", "HTTP method (default GET, or POST with --data)")
	callCmd.Flags().StringArrayVar(&callData, "data", nil, "form field key=value (repeatable)")
	callCmd.Flags().StringVarP(&callQuery, "query", "q", "", "JSONPath expression applied to the response")
}

func callPayload(pairs []string) (restbase.Data, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	data := restbase.Data{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		// repeated keys become a repeated form field
		switch existing := data[key].(type) {
		case nil:
			data[key] = value
		case string:
			data[key] = []string{existing, value}
		case []string:
			data[key] = append(existing, value)
		}
	}
	return data, nil
}

// queryResult applies a JSONPath expression to a decoded response
func queryResult(query string, content any) (any, error) {
	if query == "" {
		return content, nil
	}
	result, err := jsonpath.Get(query, content)
	if err != nil {
		return nil, fmt.Errorf("jsonpath %q: %w", query, err)
	}
	return result, nil
}

func runCall(cmd *cobra.Command, args []string) error {
	data, err := callPayload(callData)
	if err != nil {
		return err
	}

	method := strings.ToUpper(callMethod)
	if method == "" && data != nil {
		method = "POST"
	}
	if isDryRun() && method != "" && method != "GET" {
		printResult(cmd, "Would send %s %s", method, args[0])
		return nil
	}

	resp, content, err := client.Connection().Call(commandContext(cmd), args[0], data, method)
	if err != nil {
		return err
	}

	result, err := queryResult(callQuery, content)
	if err != nil {
		return err
	}

	logger.Debug().Int("status", resp.StatusCode).Str("location", resp.Location()).Msg("Call complete")

	if result == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", resp.StatusCode, resp.Location())
		return nil
	}

	// raw responses read best as JSON, so table falls back to it
	format := outputFormat
	if format == formatTable {
		format = formatJSON
	}
	return renderTo(cmd.OutOrStdout(), format, result, func(io.Writer) {})
}
