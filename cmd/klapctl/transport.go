package main

import (
	"fmt"

	"github.com/abhishek/klap/internal/config"
	"github.com/abhishek/klap/internal/klap"
	"github.com/abhishek/klap/internal/transport"
	"github.com/abhishek/klap/internal/xortransport"
)

// buildTransport constructs either a KLAP or legacy XOR transport from
// the resolved settings, wiring in metrics and the optional journal the
// same way regardless of which protocol was chosen.
func buildTransport(settings config.Settings) (transport.Transport, error) {
	m := startMetrics(settings.MetricsAddr)
	j := openJournal(settings.JournalDB)

	if settings.Legacy {
		opts := []xortransport.Option{
			xortransport.WithTimeout(settings.Timeout),
			xortransport.WithMetrics(m),
		}
		if settings.Port != 0 {
			opts = append(opts, xortransport.WithPort(settings.Port))
		}
		if j != nil {
			opts = append(opts, xortransport.WithJournal(j))
		}
		return xortransport.New(settings.Host, opts...), nil
	}

	variant, err := resolveVariant(settings.Variant)
	if err != nil {
		return nil, err
	}

	opts := []klap.Option{
		klap.WithVariant(variant),
		klap.WithCredentials(settings.Creds),
		klap.WithTimeout(settings.Timeout),
		klap.WithMetrics(m),
	}
	if j != nil {
		opts = append(opts, klap.WithJournal(j))
	}
	return klap.New(settings.Host, opts...), nil
}

func resolveVariant(name string) (klap.Variant, error) {
	switch name {
	case "", "v2":
		return klap.V2{}, nil
	case "v1":
		return klap.V1{}, nil
	default:
		return nil, fmt.Errorf("unknown klap variant %q (want v1 or v2)", name)
	}
}
