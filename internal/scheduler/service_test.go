package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/config"
	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/cfmlabs/freshness-monitor/internal/scheduler/mocks"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type SchedulerTestSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	jobs      *mocks.MockJobRunner
	refresher *mocks.MockSettingsRefresher
	service   *Service
}

func (s *SchedulerTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.jobs = mocks.NewMockJobRunner(s.ctrl)
	s.refresher = mocks.NewMockSettingsRefresher(s.ctrl)
	s.service = NewService(&config.Config{TimeZone: "UTC"}, s.jobs, s.refresher)
}

func (s *SchedulerTestSuite) TearDownTest() {
	s.service.Stop()
	s.ctrl.Finish()
}

func TestSchedulerTestSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func weekly() models.Settings {
	return models.Settings{EmailFrequency: models.FrequencyWeekly, AuthorEmailFrequency: models.FrequencyWeekly}
}

func (s *SchedulerTestSuite) TestDigestSpec() {
	s.Equal("0 0 9 * * *", DigestSpec(models.FrequencyDaily, 9))
	s.Equal("0 0 9 * * MON", DigestSpec(models.FrequencyWeekly, 9))
	s.Equal("0 0 12 1 * *", DigestSpec(models.FrequencyMonthly, 12))
	s.Equal("0 0 9 * * MON", DigestSpec("", 9))
}

func (s *SchedulerTestSuite) TestKnownJob() {
	for _, job := range []string{JobSnapshot, JobAdminDigest, JobAuthorDigest, JobSettingsReload} {
		s.True(KnownJob(job), job)
	}
	s.False(KnownJob("reindex"))
	s.False(KnownJob(""))
}

func (s *SchedulerTestSuite) allowRefresh() {
	s.refresher.EXPECT().Refresh(gomock.Any()).Return(false, nil).AnyTimes()
}

func (s *SchedulerTestSuite) TestStart_RegistersJobs() {
	s.allowRefresh()
	s.Require().NoError(s.service.Start(weekly()))

	s.Equal(map[string]string{
		JobSnapshot:       "0 0 2 * * *",
		JobSettingsReload: "0 * * * * *",
		JobAdminDigest:    "0 0 9 * * MON",
		JobAuthorDigest:   "0 0 12 * * MON",
	}, s.service.Schedules())

	next, ok := s.service.Next(JobAdminDigest)
	s.True(ok)
	s.Equal(time.Monday, next.Weekday())
	s.Equal(9, next.Hour())
}

func (s *SchedulerTestSuite) TestReschedule() {
	s.allowRefresh()
	s.Require().NoError(s.service.Start(weekly()))

	s.Require().NoError(s.service.Reschedule(models.Settings{
		EmailFrequency:       models.FrequencyDaily,
		AuthorEmailFrequency: models.FrequencyMonthly,
	}))

	specs := s.service.Schedules()
	s.Equal("0 0 9 * * *", specs[JobAdminDigest])
	s.Equal("0 0 12 1 * *", specs[JobAuthorDigest])
	s.Len(s.service.cron.Entries(), 4, "old digest entries are replaced")
}

func (s *SchedulerTestSuite) TestTrigger() {
	s.jobs.EXPECT().RecordSnapshot(gomock.Any()).Return(nil)
	s.jobs.EXPECT().RunAdminDigest(gomock.Any()).Return(errors.New("smtp down"))
	s.jobs.EXPECT().RunAuthorDigests(gomock.Any()).Return(nil)
	s.refresher.EXPECT().Refresh(gomock.Any()).Return(true, nil)

	s.NoError(s.service.Trigger(JobSnapshot))
	s.EqualError(s.service.Trigger(JobAdminDigest), "smtp down")
	s.NoError(s.service.Trigger(JobAuthorDigest))
	s.NoError(s.service.Trigger(JobSettingsReload))
	s.Error(s.service.Trigger("reindex"))
}

func (s *SchedulerTestSuite) TestWithoutRefresher() {
	svc := NewService(&config.Config{TimeZone: "UTC"}, s.jobs, nil)
	s.Require().NoError(svc.Start(weekly()))
	defer svc.Stop()

	_, ok := svc.Schedules()[JobSettingsReload]
	s.False(ok)
	s.NoError(svc.Trigger(JobSettingsReload))
}
