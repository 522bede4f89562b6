package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/blueoctober14/RightImpact/internal/model"
	"github.com/blueoctober14/RightImpact/internal/store"
)

// seedFile is the YAML layout accepted by the seed command.
type seedFile struct {
	Sources []seedSource `yaml:"sources"`
	Lists   []seedList   `yaml:"lists"`
}

type seedSource struct {
	UserID    *int64 `yaml:"user_id"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Mobile1   string `yaml:"mobile1"`
	Mobile2   string `yaml:"mobile2"`
	Mobile3   string `yaml:"mobile3"`
	Email     string `yaml:"email"`
	City      string `yaml:"city"`
	State     string `yaml:"state"`
	Zip       string `yaml:"zip"`
}

type seedList struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Contacts    []seedTarget `yaml:"contacts"`
}

type seedTarget struct {
	VoterID   string `yaml:"voter_id"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	ZipCode   string `yaml:"zip_code"`
	Cell1     string `yaml:"cell_1"`
	Cell2     string `yaml:"cell_2"`
	Cell3     string `yaml:"cell_3"`
	Landline1 string `yaml:"landline_1"`
	Landline2 string `yaml:"landline_2"`
	Landline3 string `yaml:"landline_3"`
	Email     string `yaml:"email"`
}

type seedResult struct {
	Sources  int `json:"sources"`
	Lists    int `json:"lists"`
	Contacts int `json:"target_contacts"`
}

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Load source contacts and target lists from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrap(err, "open seed file")
		}
		defer f.Close() //nolint:errcheck

		data, err := loadSeed(f)
		if err != nil {
			return err
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := applySeed(cmd.Context(), st, data)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), "json", res)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func loadSeed(r io.Reader) (*seedFile, error) {
	var data seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&data); err != nil {
		return nil, eris.Wrap(err, "decode seed file")
	}
	for i, l := range data.Lists {
		if l.Name == "" {
			return nil, eris.Errorf("list %d: name is required", i)
		}
		for j, c := range l.Contacts {
			if c.VoterID == "" {
				return nil, eris.Errorf("list %q contact %d: voter_id is required", l.Name, j)
			}
		}
	}
	return &data, nil
}

// applySeed writes every row. Rows created before a failure stay in place.
func applySeed(ctx context.Context, st store.Store, data *seedFile) (*seedResult, error) {
	res := &seedResult{}
	for _, s := range data.Sources {
		c := &model.SourceContact{
			UserID: s.UserID, FirstName: s.FirstName, LastName: s.LastName,
			Mobile1: s.Mobile1, Mobile2: s.Mobile2, Mobile3: s.Mobile3,
			Email: s.Email, City: s.City, State: s.State, Zip: s.Zip,
		}
		if err := st.CreateSourceContact(ctx, c); err != nil {
			return res, eris.Wrap(err, "seed source contact")
		}
		res.Sources++
	}

	for _, l := range data.Lists {
		list := &model.TargetList{
			Name:        l.Name,
			Description: l.Description,
			Status:      model.ListStatusCompleted,
		}
		if err := st.CreateTargetList(ctx, list); err != nil {
			return res, eris.Wrapf(err, "seed target list %q", l.Name)
		}
		res.Lists++

		contacts := make([]model.TargetContact, 0, len(l.Contacts))
		for _, t := range l.Contacts {
			contacts = append(contacts, model.TargetContact{
				VoterID: t.VoterID, FirstName: t.FirstName, LastName: t.LastName,
				ZipCode: t.ZipCode, Cell1: t.Cell1, Cell2: t.Cell2, Cell3: t.Cell3,
				Landline1: t.Landline1, Landline2: t.Landline2, Landline3: t.Landline3, Email: t.Email,
			})
		}
		n, err := st.ImportTargetContacts(ctx, list.ID, contacts)
		if err != nil {
			return res, eris.Wrapf(err, "seed contacts for list %q", l.Name)
		}
		res.Contacts += n
	}

	zap.L().Info("seed complete",
		zap.Int("sources", res.Sources),
		zap.Int("lists", res.Lists),
		zap.Int("target_contacts", res.Contacts),
	)
	return res, nil
}
