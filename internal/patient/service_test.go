package patient

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/opd-frontdesk/internal/clinic"
)

func newService(t *testing.T) *Service {
	t.Helper()
	repo, err := clinic.OpenJSONRepository(t.TempDir())
	require.NoError(t, err)
	return NewService(repo, "US", zerolog.Nop())
}

func TestRegister(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	p, err := svc.Register(ctx, Details{Name: " Grace Hopper ", Age: 85, Gender: "female", Phone: "650-253-0000"})
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", p.Name)
	assert.Equal(t, "Female", p.Gender)
	assert.Equal(t, "+1 650-253-0000", p.Phone)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Phone, got.Phone)
}

func TestRegister_Validation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	valid := Details{Name: "Alan", Age: 41, Gender: "Male", Phone: "+1 650-253-0000"}

	tests := []struct {
		name   string
		mutate func(d *Details)
	}{
		{"missing name", func(d *Details) { d.Name = "  " }},
		{"zero age", func(d *Details) { d.Age = 0 }},
		{"unknown gender", func(d *Details) { d.Gender = "robot" }},
		{"missing phone", func(d *Details) { d.Phone = "" }},
		{"letters in phone", func(d *Details) { d.Phone = "call me" }},
		{"too short", func(d *Details) { d.Phone = "123" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)
			_, err := svc.Register(ctx, d)
			assert.ErrorIs(t, err, ErrInvalidPatient)
		})
	}

	_, err := svc.Register(ctx, valid)
	assert.NoError(t, err)
}

func TestUpdateAndDelete(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	p, err := svc.Register(ctx, Details{Name: "Ada", Age: 36, Gender: "Female", Phone: "+1 650-253-0000"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, p.ID, Details{Name: "Ada Lovelace", Age: 37, Gender: "Female", Phone: "+1 650-253-0000", Address: "London"})
	require.NoError(t, err)
	assert.Equal(t, p.ID, updated.ID)
	assert.Equal(t, "London", updated.Address)
	assert.Equal(t, p.RegistrationDate.Unix(), updated.RegistrationDate.Unix())

	_, err = svc.Update(ctx, uuid.New(), Details{Name: "X", Age: 1, Gender: "Other", Phone: "+1 650-253-0000"})
	assert.ErrorIs(t, err, clinic.ErrPatientNotFound)

	require.NoError(t, svc.Delete(ctx, p.ID))
	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, clinic.ErrPatientNotFound)
}

func TestSearch(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	for _, d := range []Details{
		{Name: "Priya Shah", Age: 28, Gender: "Female", Phone: "+1 650-253-0000", Address: "Elm Street"},
		{Name: "Rahul Shah", Age: 62, Gender: "Male", Phone: "+1 650-253-0001"},
		{Name: "Tom Elm", Age: 45, Gender: "Male", Phone: "+1 650-253-0002"},
	} {
		_, err := svc.Register(ctx, d)
		require.NoError(t, err)
	}

	all, err := svc.Search(ctx, "", Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	shah, err := svc.Search(ctx, "SHAH", Filter{})
	require.NoError(t, err)
	assert.Len(t, shah, 2)

	elm, err := svc.Search(ctx, "elm", Filter{})
	require.NoError(t, err)
	assert.Len(t, elm, 2, "name and address both match")

	seniors, err := svc.Search(ctx, "shah", Filter{Gender: "male", MinAge: 60})
	require.NoError(t, err)
	require.Len(t, seniors, 1)
	assert.Equal(t, "Rahul Shah", seniors[0].Name)

	none, err := svc.Search(ctx, "zzz", Filter{MaxAge: 30})
	require.NoError(t, err)
	assert.Empty(t, none)
}
