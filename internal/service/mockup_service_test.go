package service

import (
	"context"
	"strings"
	"testing"

	"app/internal/config"
	"app/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testS3Client() *s3.Client {
	return s3.New(s3.Options{
		Region:       "us-east-1",
		Credentials:  aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider("test", "test", "")),
		BaseEndpoint: aws.String("http://localhost:9000"),
		UsePathStyle: true,
	})
}

func newMockupService(credits *fakeCreditRepo, mockups *fakeMockupRepo, gen Generator) MockupService {
	cfg := &config.Config{
		S3Bucket:        "mockups",
		S3PublicBaseURL: "http://localhost:9000/mockups",
	}
	return NewMockupService(credits, mockups, gen, testS3Client(), cfg, zerolog.Nop())
}

func TestGenerateChargesPerVariation(t *testing.T) {
	credits := newFakeCreditRepo(map[string]int{"user-1": 10})
	repo := newFakeMockupRepo()
	svc := newMockupService(credits, repo, &fakeGenerator{})

	outcome, err := svc.Generate(context.Background(), "user-1", "https://img.example.com/a.png", []string{"mug", "poster"}, 2)
	require.NoError(t, err)

	assert.Len(t, outcome.Mockups, 4)
	assert.Empty(t, outcome.Errors)
	// 2 categories x 2 variations = 4 credits spent.
	assert.Equal(t, 6, outcome.Remaining)
	assert.Len(t, repo.mockups, 4)
	require.NotNil(t, outcome.Artwork)
	assert.Equal(t, "user-1", outcome.Artwork.UserID)
}

func TestGenerateInsufficientCreditsLeavesBalanceUntouched(t *testing.T) {
	credits := newFakeCreditRepo(map[string]int{"user-1": 2})
	repo := newFakeMockupRepo()
	svc := newMockupService(credits, repo, &fakeGenerator{})

	_, err := svc.Generate(context.Background(), "user-1", "https://img.example.com/a.png", []string{"mug"}, 3)
	assert.ErrorIs(t, err, repository.ErrInsufficientCredits)
	assert.Equal(t, 2, credits.balances["user-1"])
	assert.Empty(t, repo.mockups)
	assert.Empty(t, repo.artworks)
}

func TestGenerateRefundsFailedUnits(t *testing.T) {
	credits := newFakeCreditRepo(map[string]int{"user-1": 10})
	repo := newFakeMockupRepo()
	svc := newMockupService(credits, repo, &fakeGenerator{failing: map[string]bool{"mug": true}})

	outcome, err := svc.Generate(context.Background(), "user-1", "https://img.example.com/a.png", []string{"mug", "poster"}, 1)
	require.NoError(t, err)

	assert.Len(t, outcome.Mockups, 1)
	assert.Len(t, outcome.Errors, 1)
	// Only the successful unit stays charged.
	assert.Equal(t, 9, outcome.Remaining)
	assert.Equal(t, 9, credits.balances["user-1"])
}

func TestGenerateAllFailedRefundsEverything(t *testing.T) {
	credits := newFakeCreditRepo(map[string]int{"user-1": 10})
	repo := newFakeMockupRepo()
	svc := newMockupService(credits, repo, &fakeGenerator{failing: map[string]bool{"mug": true, "poster": true}})

	_, err := svc.Generate(context.Background(), "user-1", "https://img.example.com/a.png", []string{"mug", "poster"}, 1)
	assert.ErrorIs(t, err, ErrAllGenerationsFailed)
	assert.Equal(t, 10, credits.balances["user-1"])
}

func TestGenerateRejectsInvalidBatches(t *testing.T) {
	credits := newFakeCreditRepo(map[string]int{"user-1": 100})
	svc := newMockupService(credits, newFakeMockupRepo(), &fakeGenerator{})

	_, err := svc.Generate(context.Background(), "user-1", "https://img.example.com/a.png", []string{"hologram"}, 1)
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = svc.Generate(context.Background(), "user-1", "https://img.example.com/a.png", []string{"mug"}, 11)
	assert.ErrorIs(t, err, ErrTooManyVariations)

	// Validation failures never touch the balance.
	assert.Equal(t, 100, credits.balances["user-1"])
}

func TestEditChargesOneCredit(t *testing.T) {
	credits := newFakeCreditRepo(map[string]int{"user-1": 5})
	repo := newFakeMockupRepo()
	svc := newMockupService(credits, repo, &fakeGenerator{})

	outcome, err := svc.Generate(context.Background(), "user-1", "https://img.example.com/a.png", []string{"mug"}, 1)
	require.NoError(t, err)
	original := outcome.Mockups[0]

	edited, err := svc.Edit(context.Background(), "user-1", original.ID)
	require.NoError(t, err)
	assert.Equal(t, original.ID, edited.ID)
	assert.Equal(t, 3, credits.balances["user-1"])
}

func TestEditHidesOtherUsersMockups(t *testing.T) {
	credits := newFakeCreditRepo(map[string]int{"user-1": 5, "user-2": 5})
	repo := newFakeMockupRepo()
	svc := newMockupService(credits, repo, &fakeGenerator{})

	outcome, err := svc.Generate(context.Background(), "user-1", "https://img.example.com/a.png", []string{"mug"}, 1)
	require.NoError(t, err)

	_, err = svc.Edit(context.Background(), "user-2", outcome.Mockups[0].ID)
	assert.ErrorIs(t, err, repository.ErrMockupNotFound)
	assert.Equal(t, 5, credits.balances["user-2"])
}

func TestEditRefundsOnRenderFailure(t *testing.T) {
	credits := newFakeCreditRepo(map[string]int{"user-1": 5})
	repo := newFakeMockupRepo()
	gen := &fakeGenerator{}
	svc := newMockupService(credits, repo, gen)

	outcome, err := svc.Generate(context.Background(), "user-1", "https://img.example.com/a.png", []string{"mug"}, 1)
	require.NoError(t, err)

	gen.failing = map[string]bool{"mug": true}
	_, err = svc.Edit(context.Background(), "user-1", outcome.Mockups[0].ID)
	require.Error(t, err)
	assert.Equal(t, 4, credits.balances["user-1"])
}

func TestCreateArtworkUpload(t *testing.T) {
	credits := newFakeCreditRepo(map[string]int{"user-1": 5})
	repo := newFakeMockupRepo()
	svc := newMockupService(credits, repo, &fakeGenerator{})

	artwork, uploadURL, err := svc.CreateArtworkUpload(context.Background(), "user-1", "design.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(artwork.URL, "http://localhost:9000/mockups/artworks/user-1/"))
	assert.Contains(t, uploadURL, "X-Amz-Signature")
	assert.Len(t, repo.artworks, 1)

	_, _, err = svc.CreateArtworkUpload(context.Background(), "user-1", "design.exe")
	assert.ErrorIs(t, err, ErrInvalidArtworkURL)
}
