package player

import (
	"flag"
	"time"

	"github.com/grafana/dskit/flagext"
	"github.com/zachfi/zkit/pkg/util"

	"github.com/zachfi/icyradio/pkg/radio"
)

const (
	defaultReconnectInitial = 5 * time.Second
	defaultReconnectMax     = 60 * time.Second
	defaultDrainTimeout     = 5 * time.Second

	OutputOto     = "oto"
	OutputDiscard = "discard"
)

type Config struct {
	URL                 string                 `yaml:"url,omitempty"`
	Name                string                 `yaml:"name,omitempty"`
	Station             int                    `yaml:"station"`
	StationsFile        string                 `yaml:"stations-file,omitempty"`
	Decoder             string                 `yaml:"decoder,omitempty"`
	DecoderArgs         flagext.StringSliceCSV `yaml:"decoder-args,omitempty"`
	BlockSize           int                    `yaml:"block-size,omitempty"`
	MetadataCharset     string                 `yaml:"metadata-charset,omitempty"`
	Output              string                 `yaml:"output,omitempty"`
	Volume              int                    `yaml:"volume,omitempty"`
	DrainTimeout        time.Duration          `yaml:"drain-timeout,omitempty"`
	Reconnect           bool                   `yaml:"reconnect"`
	ReconnectBackoff    time.Duration          `yaml:"reconnect-backoff,omitempty"`     // initial delay before reconnecting after the stream ends
	ReconnectBackoffMax time.Duration          `yaml:"reconnect-backoff-max,omitempty"` // cap on reconnect delay (exponential backoff)
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.URL, util.PrefixConfig(prefix, "url"), "", "Stream or playlist URL to play on startup. Takes precedence over station.")
	f.StringVar(&cfg.Name, util.PrefixConfig(prefix, "name"), "", "Display name for the url station.")
	f.IntVar(&cfg.Station, util.PrefixConfig(prefix, "station"), -1, "Index into the station list to play on startup, -1 for none.")
	f.StringVar(&cfg.StationsFile, util.PrefixConfig(prefix, "stations-file"), "", "YAML station list, reloaded when it changes. The built-in list is used when empty.")
	f.StringVar(&cfg.Decoder, util.PrefixConfig(prefix, "decoder"), "ffmpeg", "Decoder executable.")
	f.Var(&cfg.DecoderArgs, util.PrefixConfig(prefix, "decoder-args"), "Comma separated decoder arguments replacing the built-in ffmpeg arguments.")
	f.IntVar(&cfg.BlockSize, util.PrefixConfig(prefix, "block-size"), radio.DefaultBlockSize, "Bytes requested per network read.")
	f.StringVar(&cfg.MetadataCharset, util.PrefixConfig(prefix, "metadata-charset"), "", "Text encoding of stream titles, eg. iso-8859-1. Strict UTF-8 when empty.")
	f.StringVar(&cfg.Output, util.PrefixConfig(prefix, "output"), OutputOto, "Audio output: oto or discard.")
	f.IntVar(&cfg.Volume, util.PrefixConfig(prefix, "volume"), 100, "Output volume, 0-100.")
	f.DurationVar(&cfg.DrainTimeout, util.PrefixConfig(prefix, "drain-timeout"), defaultDrainTimeout,
		"How long decoded audio keeps playing after the stream ends.")
	f.BoolVar(&cfg.Reconnect, util.PrefixConfig(prefix, "reconnect"), true, "Reconnect when the stream ends on its own.")
	f.DurationVar(&cfg.ReconnectBackoff, util.PrefixConfig(prefix, "reconnect-backoff"), defaultReconnectInitial,
		"Initial delay before reconnecting after the stream ends. Exponential backoff is used up to reconnect-backoff-max.")
	f.DurationVar(&cfg.ReconnectBackoffMax, util.PrefixConfig(prefix, "reconnect-backoff-max"), defaultReconnectMax,
		"Maximum delay between reconnection attempts.")
}
