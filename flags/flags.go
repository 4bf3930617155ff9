package flags

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatText = "text"
)

type Flags struct {
	ElasticURL       string `cli:"connect" cliAlt:"c" usage:"ElasticSearch URL"`
	ElasticUser      string `cli:"user" usage:"ElasticSearch Username"`
	ElasticPass      string `cli:"pass" usage:"ElasticSearch Password"`
	ElasticVerifySSL bool   `cli:"verifySSL" usage:"Verify SSL certificate"`
	ElasticClientCrt string `cli:"clientCrt" usage:"Path to client certificate for TLS authentication"`
	ElasticClientKey string `cli:"clientKey" usage:"Path to client key for TLS authentication"`
	ElasticVersion   int    `cli:"elasticVersion" usage:"Major version of the ElasticSearch cluster [7|8|9]"`
	Trace            bool   `cli:"trace" usage:"Log every request sent to ElasticSearch"`

	Operation string `cli:"operation" cliAlt:"op" usage:"Operation to run [delete-by-query|update-by-query|reindex]"`
	Index     string `cli:"index" cliAlt:"i" usage:"ElasticSearch Index (or Index Prefix), comma separated for several"`
	Typelist  string `cli:"types" usage:"Document types to restrict the search to as comma separated list"`
	Routing   string `cli:"routing" usage:"Routing values of the search as comma separated list"`
	RAWQuery  string `cli:"rawquery" cliAlt:"r" usage:"ElasticSearch raw query string"`
	Query     string `cli:"query" cliAlt:"q" usage:"Lucene query same that is used in Kibana search input"`
	StartDate string `cli:"start" cliAlt:"s" usage:"Start date for included documents"`
	EndDate   string `cli:"end" cliAlt:"e" usage:"End date for included documents"`
	Timefield string `cli:"timefield" usage:"Field name to use for start and end date query"`
	Fieldlist string `cli:"fields" usage:"Source fields to fetch as comma separated list"`

	ScrollSize    int    `cli:"size" usage:"Number of documents fetched per scroll batch"`
	ScrollTimeout string `cli:"scroll" usage:"How long the scroll context is kept alive between batches"`
	MaxDocs       int    `cli:"maxDocs" usage:"Stop after this many documents, -1 for all matches"`
	Conflicts     string `cli:"conflicts" usage:"What to do on version conflicts [abort|proceed]"`
	Refresh       bool   `cli:"refresh" usage:"Refresh the touched indices when done"`
	Timeout       string `cli:"timeout" usage:"How long each bulk request waits for unavailable shards"`
	Consistency   string `cli:"consistency" usage:"Write consistency of the bulk requests [default|one|quorum|all]"`
	RetryBackoff  string `cli:"retryBackoff" usage:"Initial delay before retrying a rejected bulk request"`
	MaxRetries    int    `cli:"maxRetries" usage:"How often a rejected bulk request is retried"`

	DestIndex    string `cli:"dest" usage:"Destination index of a reindex"`
	DestType     string `cli:"destType" usage:"Destination type of a reindex"`
	OpType       string `cli:"opType" usage:"op_type of the reindexed documents [index|create]"`
	VersionType  string `cli:"versionType" usage:"version_type of the reindexed documents"`
	DestRouting  string `cli:"destRouting" usage:"Routing of the reindexed documents [keep|discard|=<value>]"`
	Pipeline     string `cli:"pipeline" usage:"Ingest pipeline the written documents pass through"`
	Script       string `cli:"script" usage:"Script source run against every document of an update-by-query"`
	ScriptLang   string `cli:"scriptLang" usage:"Language of the script"`
	ScriptParams string `cli:"scriptParams" usage:"Script parameters as JSON object"`

	Outfile      string `cli:"outfile" cliAlt:"o" usage:"Write the encoded request to this file, - for stdout"`
	Infile       string `cli:"infile" usage:"Read an encoded request from this file instead of building one from flags"`
	OutFormat    string `cli:"outformat" cliAlt:"f" usage:"Format of the task status output. [json|csv|text]"`
	Statusfile   string `cli:"statusfile" usage:"Path to task status output, - for stdout"`
	Wait         bool   `cli:"wait" usage:"Follow the task until it completes"`
	PollInterval string `cli:"poll" usage:"How often the task status is fetched while waiting"`
	DryRun       bool   `cli:"dryrun" usage:"Validate the request and count matching documents without submitting"`
}

// Default returns the flag values used when nothing else is given.
func Default() Flags {
	return Flags{
		ElasticURL:     "http://localhost:9200",
		ElasticVersion: 8,
		Operation:      "delete-by-query",
		Query:          "*",
		Timefield:      "@timestamp",
		ScrollSize:     100,
		ScrollTimeout:  "5m",
		MaxDocs:        -1,
		Conflicts:      "abort",
		Timeout:        "1m",
		Consistency:    "default",
		RetryBackoff:   "50ms",
		MaxRetries:     10,
		OutFormat:      FormatJSON,
		Statusfile:     "-",
		PollInterval:   "1s",
	}
}
