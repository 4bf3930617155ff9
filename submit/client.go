package submit

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"time"

	elasticv7import "github.com/olivere/elastic/v7"
	"go.uber.org/zap"

	"github.com/pteich/elastic-bulk-by-scroll/elastic"
	elasticv7 "github.com/pteich/elastic-bulk-by-scroll/elastic/v7"
	elasticv8 "github.com/pteich/elastic-bulk-by-scroll/elastic/v8"
	elasticv9 "github.com/pteich/elastic-bulk-by-scroll/elastic/v9"
	"github.com/pteich/elastic-bulk-by-scroll/flags"
	"github.com/pteich/elastic-bulk-by-scroll/search"
)

// Client is what every supported cluster generation offers.
type Client interface {
	elastic.Client
	Count(ctx context.Context, src *search.Request) (int64, error)
}

var ErrUnsupportedVersion = errors.New("unsupported ElasticSearch version")

func createClient(conf *flags.Flags, logger *zap.Logger) (Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: !conf.ElasticVerifySSL,
	}

	if conf.ElasticClientCrt != "" && conf.ElasticClientKey != "" {
		cert, err := tls.LoadX509KeyPair(conf.ElasticClientCrt, conf.ElasticClientKey)
		if err != nil {
			return nil, err
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	tr := &http.Transport{
		TLSClientConfig: tlsCfg,
	}
	httpClient := &http.Client{Transport: tr}

	switch conf.ElasticVersion {
	case 7:
		esLogger := logger.Named("elastic")
		esOpts := []elasticv7import.ClientOptionFunc{
			elasticv7.SetHttpClient(httpClient),
			elasticv7.SetURL(conf.ElasticURL),
			elasticv7.SetSniff(false),
			elasticv7.SetHealthcheckInterval(60 * time.Second),
			elasticv7.SetErrorLog(zap.NewStdLog(esLogger)),
		}

		if conf.Trace {
			traceLog, err := zap.NewStdLogAt(esLogger, zap.DebugLevel)
			if err != nil {
				return nil, err
			}
			esOpts = append(esOpts, elasticv7.SetTraceLog(traceLog))
		}

		if conf.ElasticUser != "" && conf.ElasticPass != "" {
			esOpts = append(esOpts, elasticv7.SetBasicAuth(conf.ElasticUser, conf.ElasticPass))
		}

		client, err := elasticv7.NewClient(esOpts)
		if err != nil {
			return nil, err
		}
		return client, nil

	case 8:
		cfg := elasticv8.NewConfig(conf.ElasticURL, conf.ElasticUser, conf.ElasticPass, httpClient)
		client, err := elasticv8.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil

	case 9:
		cfg := elasticv9.NewConfig(conf.ElasticURL, conf.ElasticUser, conf.ElasticPass, httpClient)
		client, err := elasticv9.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil

	default:
		return nil, ErrUnsupportedVersion
	}
}
