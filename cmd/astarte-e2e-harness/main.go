// Command astarte-e2e-harness pairs one device, drives its connection FSM
// in the background, and exposes the expect_*/send_*/disconnect shell
// surface over stdin, one command per line, printing "0" on success and
// "1" on any parameter or enqueue error.
package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/cirrus-iot/astarte-device-sdk/internal/asterr"
	"github.com/cirrus-iot/astarte-device-sdk/internal/astarte"
	"github.com/cirrus-iot/astarte-device-sdk/internal/credstore"
	"github.com/cirrus-iot/astarte-device-sdk/internal/device"
	"github.com/cirrus-iot/astarte-device-sdk/internal/deviceconfig"
	"github.com/cirrus-iot/astarte-device-sdk/internal/harness"
	"github.com/cirrus-iot/astarte-device-sdk/internal/pairing"
	"github.com/cirrus-iot/astarte-device-sdk/internal/statusserver"
	mqtt "github.com/cirrus-iot/astarte-device-sdk/internal/transport/mqtt"
)

// fixtureIntrospection is the interface set the e2e harness exercises.
// Schema parsing from source text is out of scope for the SDK itself
// (interfaces are always supplied as already-validated descriptors); these
// are that descriptor set, hand-authored to exercise every mapping shape
// the harness's expect_*/send_* commands can target.
func fixtureIntrospection() (*astarte.Introspection, error) {
	deviceDatastream, err := astarte.NewInterface(
		"org.astarte.e2e.DeviceDatastream", 0, 1,
		astarte.OwnershipDevice, astarte.AggregationIndividual, astarte.Datastream,
		[]astarte.Mapping{
			{PathTemplate: "/%{sensor_id}/value", Type: astarte.Double, Reliability: astarte.Unreliable},
			{PathTemplate: "/%{sensor_id}/enabled", Type: astarte.Boolean, Reliability: astarte.Guaranteed},
		},
	)
	if err != nil {
		return nil, err
	}

	deviceObject, err := astarte.NewInterface(
		"org.astarte.e2e.DeviceAggregate", 0, 1,
		astarte.OwnershipDevice, astarte.AggregationObject, astarte.Datastream,
		[]astarte.Mapping{
			{PathTemplate: "/measurements/temperature", Type: astarte.Double, Reliability: astarte.Unreliable},
			{PathTemplate: "/measurements/humidity", Type: astarte.Double, Reliability: astarte.Unreliable},
		},
	)
	if err != nil {
		return nil, err
	}

	deviceProperty, err := astarte.NewInterface(
		"org.astarte.e2e.DeviceProperty", 0, 1,
		astarte.OwnershipDevice, astarte.AggregationIndividual, astarte.Properties,
		[]astarte.Mapping{
			{PathTemplate: "/config/name", Type: astarte.String, Reliability: astarte.Unique, AllowUnset: true},
		},
	)
	if err != nil {
		return nil, err
	}

	serverDatastream, err := astarte.NewInterface(
		"org.astarte.e2e.ServerDatastream", 0, 1,
		astarte.OwnershipServer, astarte.AggregationIndividual, astarte.Datastream,
		[]astarte.Mapping{
			{PathTemplate: "/command/enable", Type: astarte.Boolean, Reliability: astarte.Guaranteed},
		},
	)
	if err != nil {
		return nil, err
	}

	intro := astarte.NewIntrospection()
	intro.Add(deviceDatastream)
	intro.Add(deviceObject)
	intro.Add(deviceProperty)
	intro.Add(serverDatastream)
	return intro, nil
}

const credentialsTag = "device"

// issueNewCertificate runs the CSR-issuance half of the pairing flow:
// generate an ECDSA key and CSR, exchange it for a signed client
// certificate, and store both under credentialsTag.
func issueNewCertificate(ctx context.Context, pairingClient *pairing.Client, cfg deviceconfig.Config, secret string, creds *credstore.Memory) ([]byte, error) {
	csrPEM, keyPEM, err := pairing.GenerateCSR(cfg.Realm + "/" + cfg.HardwareID)
	if err != nil {
		return nil, err
	}
	certPEM, err := pairingClient.RequestCertificate(ctx, cfg.HardwareID, secret, csrPEM)
	if err != nil {
		return nil, err
	}
	if err := creds.Add(credentialsTag, credstore.RoleDeviceCertificate, certPEM, keyPEM); err != nil {
		return nil, err
	}
	return certPEM, nil
}

// bootstrapDevice runs the pairing flow end to end: register (if no
// credentials secret is configured), issue a CSR on first boot or verify
// and, if invalid, renew an already-stored client certificate, resolve the
// broker URL, then build and connect a Device. creds is shared with the
// caller so a later Device.Close can remove the credential it adds here.
func bootstrapDevice(ctx context.Context, cfg deviceconfig.Config, logger *zap.Logger, intro *astarte.Introspection, creds *credstore.Memory) (*device.Device, error) {
	const op = "main.bootstrapDevice"

	pairingClient, err := pairing.NewClient(cfg.PairingBaseURL, cfg.Realm, cfg.HTTPTimeout)
	if err != nil {
		return nil, err
	}

	secret := cfg.CredentialsSecret
	if secret == "" {
		secret, err = pairingClient.RegisterDevice(ctx, "", cfg.HardwareID)
		if err != nil {
			return nil, err
		}
	}

	certPEM, hasCert := creds.CertPEM(credentialsTag)
	if !hasCert {
		certPEM, err = issueNewCertificate(ctx, pairingClient, cfg, secret, creds)
		if err != nil {
			return nil, err
		}
	} else if verifyErr := pairingClient.VerifyClientCertificate(ctx, cfg.HardwareID, secret, certPEM); verifyErr != nil {
		if asterr.KindOf(verifyErr) != asterr.KindClientCertInvalid {
			return nil, verifyErr
		}
		if err := creds.Delete(credentialsTag); err != nil {
			return nil, err
		}
		certPEM, err = issueNewCertificate(ctx, pairingClient, cfg, secret, creds)
		if err != nil {
			return nil, err
		}
	}
	cert, _ := creds.Get(credentialsTag)

	realm, deviceID, err := pairing.ParseCommonName(certPEM)
	if err != nil {
		return nil, err
	}

	brokerURL, err := pairingClient.BrokerURL(ctx, cfg.HardwareID, secret)
	if err != nil {
		return nil, err
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	}

	adapter := mqtt.NewAdapter(mqtt.Config{
		BrokerURL:      brokerURL,
		ClientID:       deviceID,
		KeepAlive:      30 * time.Second,
		ConnectTimeout: cfg.MQTTConnectionTimeout,
		TLSConfig:      tlsConfig,
	}, logger)

	dev := device.New(device.Config{
		Logger:         logger,
		Adapter:        adapter,
		Introspection:  intro,
		Realm:          realm,
		DeviceID:       deviceID,
		BackoffInitial: 500 * time.Millisecond,
		BackoffMax:     30 * time.Second,
		Credentials:    creds,
		CredentialsTag: credentialsTag,
	})

	if err := dev.Connect(); err != nil {
		return nil, asterr.New(asterr.KindOf(err), op, err)
	}
	return dev, nil
}

func buildCommand(h *harness.Harness) *cli.Command {
	tsFlag := func(args cli.Args, index int) (*time.Time, error) {
		if args.Len() <= index {
			return nil, nil
		}
		ms, err := strconv.ParseInt(args.Get(index), 10, 64)
		if err != nil {
			return nil, err
		}
		t := time.UnixMilli(ms)
		return &t, nil
	}

	return &cli.Command{
		Name: "astarte-e2e-harness",
		Commands: []*cli.Command{
			{
				Name: "expect_individual",
				Action: func(_ context.Context, cmd *cli.Command) error {
					args := cmd.Args()
					ts, err := tsFlag(args, 3)
					if err != nil {
						return err
					}
					return h.ExpectIndividual(args.Get(0), args.Get(1), args.Get(2), ts)
				},
			},
			{
				Name: "expect_object",
				Action: func(_ context.Context, cmd *cli.Command) error {
					args := cmd.Args()
					ts, err := tsFlag(args, 3)
					if err != nil {
						return err
					}
					return h.ExpectObject(args.Get(0), args.Get(1), args.Get(2), ts)
				},
			},
			{
				Name: "expect_property_set",
				Action: func(_ context.Context, cmd *cli.Command) error {
					args := cmd.Args()
					return h.ExpectPropertySet(args.Get(0), args.Get(1), args.Get(2))
				},
			},
			{
				Name: "expect_property_unset",
				Action: func(_ context.Context, cmd *cli.Command) error {
					args := cmd.Args()
					return h.ExpectPropertyUnset(args.Get(0), args.Get(1))
				},
			},
			{
				Name: "send_individual",
				Action: func(_ context.Context, cmd *cli.Command) error {
					args := cmd.Args()
					ts, err := tsFlag(args, 3)
					if err != nil {
						return err
					}
					return h.SendIndividual(args.Get(0), args.Get(1), args.Get(2), ts)
				},
			},
			{
				Name: "send_object",
				Action: func(_ context.Context, cmd *cli.Command) error {
					args := cmd.Args()
					ts, err := tsFlag(args, 3)
					if err != nil {
						return err
					}
					return h.SendObject(args.Get(0), args.Get(1), args.Get(2), ts)
				},
			},
			{
				Name: "send_property_set",
				Action: func(_ context.Context, cmd *cli.Command) error {
					args := cmd.Args()
					return h.SendPropertySet(args.Get(0), args.Get(1), args.Get(2))
				},
			},
			{
				Name: "send_property_unset",
				Action: func(_ context.Context, cmd *cli.Command) error {
					args := cmd.Args()
					return h.SendPropertyUnset(args.Get(0), args.Get(1))
				},
			},
			{
				Name: "disconnect",
				Action: func(context.Context, *cli.Command) error {
					return h.Disconnect()
				},
			},
		},
	}
}

func run() error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := deviceconfig.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	intro, err := fixtureIntrospection()
	if err != nil {
		return fmt.Errorf("building introspection: %w", err)
	}

	ctx := context.Background()
	creds := credstore.NewMemory()
	dev, err := bootstrapDevice(ctx, cfg, logger, intro, creds)
	if err != nil {
		return fmt.Errorf("bootstrapping device: %w", err)
	}
	defer func() {
		if err := dev.Close(); err != nil {
			logger.Warn("device close failed", zap.Error(err))
		}
	}()

	go func() {
		if err := dev.Run(ctx, 100*time.Millisecond); err != nil {
			logger.Warn("device run loop exited", zap.Error(err))
		}
	}()

	if cfg.StatusServerAddr != "" {
		snapshotFunc := func() statusserver.Snapshot {
			s := dev.Snapshot()
			return statusserver.Snapshot{
				State:         s.State,
				Introspection: s.Introspection,
				LastError:     s.LastError,
				Connected:     s.Connected,
			}
		}
		statusSrv := statusserver.New(cfg.StatusServerAddr, snapshotFunc, logger)
		go func() {
			if err := statusSrv.Start(ctx); err != nil {
				logger.Warn("status server exited", zap.Error(err))
			}
		}()
	}

	h := harness.New(dev, intro)
	app := buildCommand(h)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		argv := append([]string{"astarte-e2e-harness"}, fields...)
		if err := app.Run(ctx, argv); err != nil {
			logger.Warn("command failed", zap.String("line", line), zap.Error(err))
			fmt.Println(1)
			continue
		}
		fmt.Println(0)
	}
	return scanner.Err()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
