package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vivariumcore/internal/core"
	"vivariumcore/pkg/domain"
)

// facilityManifest is the document accepted by "facility create".
type facilityManifest struct {
	ID             string                        `json:"id"`
	Name           string                        `json:"name"`
	Description    *string                       `json:"description"`
	Type           domain.FacilityType           `json:"type"`
	Status         domain.FacilityStatus         `json:"status"`
	ContactInfo    domain.ContactInfo            `json:"contactInfo"`
	Address        domain.Address                `json:"address"`
	OperatingHours *domain.OperatingHours        `json:"operatingHours"`
	Configuration  *domain.FacilityConfiguration `json:"configuration"`
}

func (m facilityManifest) facility(preset domain.Preset, now core.Clock) domain.Facility {
	hours := domain.StandardOperatingHours()
	if m.OperatingHours != nil {
		hours = *m.OperatingHours
	}
	cfg := domain.FacilityConfigurationPreset(preset)
	if m.Configuration != nil {
		cfg = *m.Configuration
	}
	return domain.NewFacility(domain.FacilityFields{
		ID:             m.ID,
		Name:           m.Name,
		Description:    m.Description,
		Type:           m.Type,
		Status:         m.Status,
		ContactInfo:    m.ContactInfo,
		Address:        m.Address,
		OperatingHours: hours,
		Configuration:  &cfg,
	}, now.Now())
}

// reportResult writes non-blocking rule violations to stderr.
func (a *app) reportResult(res domain.Result) {
	for _, v := range res.Violations {
		fmt.Fprintf(a.stderr, "%s: %s: %s\n", v.Severity, v.Rule, v.Message)
	}
}

func newFacilityCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "facility",
		Aliases: []string{"facilities"},
		Short:   "Create, inspect and modify facilities",
	}
	cmd.AddCommand(
		newFacilityListCommand(a),
		newFacilityGetCommand(a),
		newFacilityCreateCommand(a),
		newFacilityUpdateCommand(a),
		newFacilityDeleteCommand(a),
		newFacilityConfigureCommand(a),
	)
	return cmd
}

func newFacilityListCommand(a *app) *cobra.Command {
	var (
		typ         string
		search      string
		operational bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List facilities in insertion order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.facilityManager(cmd.Context())
			if err != nil {
				return err
			}
			var facilities []domain.Facility
			switch {
			case search != "":
				facilities = m.SearchFacilities(search)
			case typ != "":
				t := domain.FacilityType(typ)
				if !t.Valid() {
					return fmt.Errorf("unknown facility type %q", typ)
				}
				facilities = m.FacilitiesByType(t)
			case operational:
				facilities = m.OperationalFacilities()
			default:
				facilities = m.Facilities()
			}
			return a.print(facilities)
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "only facilities of this type")
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive match on name or description")
	cmd.Flags().BoolVar(&operational, "operational", false, "only operational facilities")
	return cmd
}

func newFacilityGetCommand(a *app) *cobra.Command {
	var touch bool
	cmd := &cobra.Command{
		Use:   "get ID",
		Short: "Show one facility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.facilityManager(cmd.Context())
			if err != nil {
				return err
			}
			if touch {
				f, err := m.TouchFacility(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.print(f)
			}
			f, ok := m.Facility(args[0])
			if !ok {
				return &domain.NotFoundError{Entity: domain.EntityFacility, ID: args[0]}
			}
			return a.print(f)
		},
	}
	cmd.Flags().BoolVar(&touch, "touch", false, "record the access in lastAccessedAt")
	return cmd
}

func newFacilityCreateCommand(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create -f FILE",
		Short: "Create a facility from a YAML or JSON manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var manifest facilityManifest
			if err := a.readManifest(file, &manifest); err != nil {
				return err
			}
			m, err := a.facilityManager(cmd.Context())
			if err != nil {
				return err
			}
			f, res, err := m.CreateFacility(cmd.Context(), manifest.facility(a.cfg.FacilityPreset(), m))
			if err != nil {
				return err
			}
			a.reportResult(res)
			return a.print(f)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "manifest path, or - for stdin")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newFacilityUpdateCommand(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "update ID -f FILE",
		Short: "Overlay manifest fields onto an existing facility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.facilityManager(cmd.Context())
			if err != nil {
				return err
			}
			f, ok := m.Facility(args[0])
			if !ok {
				return &domain.NotFoundError{Entity: domain.EntityFacility, ID: args[0]}
			}
			if err := a.readManifest(file, &f); err != nil {
				return err
			}
			f.ID = args[0]
			updated, res, err := m.UpdateFacility(cmd.Context(), f)
			if err != nil {
				return err
			}
			a.reportResult(res)
			return a.print(updated)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "manifest path, or - for stdin")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newFacilityDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a facility; its buildings are kept and reported",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.facilityManager(cmd.Context())
			if err != nil {
				return err
			}
			res, err := m.DeleteFacility(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.reportResult(res)
			fmt.Fprintf(a.stdout, "deleted facility %s\n", args[0])
			return nil
		},
	}
}

func newFacilityConfigureCommand(a *app) *cobra.Command {
	var (
		preset string
		file   string
	)
	cmd := &cobra.Command{
		Use:   "configure ID (--preset NAME | -f FILE)",
		Short: "Replace a facility's configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.facilityConfiguration(preset, file)
			if err != nil {
				return err
			}
			m, err := a.facilityManager(cmd.Context())
			if err != nil {
				return err
			}
			f, res, err := m.UpdateFacilityConfiguration(cmd.Context(), args[0], cfg)
			if err != nil {
				return err
			}
			a.reportResult(res)
			return a.print(f.Configuration)
		},
	}
	cmd.Flags().StringVar(&preset, "preset", "", "preset name: "+presetNames())
	cmd.Flags().StringVarP(&file, "file", "f", "", "configuration document, fields omitted keep the preset value")
	cmd.MarkFlagsOneRequired("preset", "file")
	return cmd
}

// facilityConfiguration starts from the named preset (or the configured one) and overlays
// the optional document.
func (a *app) facilityConfiguration(presetName, file string) (domain.FacilityConfiguration, error) {
	preset := a.cfg.FacilityPreset()
	if presetName != "" {
		p, err := domain.ParsePreset(presetName)
		if err != nil {
			return domain.FacilityConfiguration{}, err
		}
		preset = p
	}
	cfg := domain.FacilityConfigurationPreset(preset)
	if file != "" {
		if err := a.readManifest(file, &cfg); err != nil {
			return domain.FacilityConfiguration{}, err
		}
	}
	return cfg, nil
}

func presetNames() string {
	names := make([]string, 0, len(domain.Presets()))
	for _, p := range domain.Presets() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}
