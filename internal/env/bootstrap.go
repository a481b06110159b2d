package env

import (
	"github.com/OmarSalvatierra99/portfolio/internal/config"
	"github.com/OmarSalvatierra99/portfolio/internal/store/dsm"
	"github.com/OmarSalvatierra99/portfolio/internal/store/pam"
	"github.com/OmarSalvatierra99/portfolio/internal/utils"
)

func NewBootstrapManager(settings *config.Settings) *BootstrapManager {
	return &BootstrapManager{
		settings:          settings,
		filesystemHandler: utils.NewFilesystemExecutor(),
		pamStoreHandler:   pam.NewPamStore(settings.PamStorePath),
		dsmStoreHandler:   dsm.NewDsmStore(settings.DsmStorePath),
	}
}

type BootstrapManager struct {
	settings          *config.Settings
	filesystemHandler utils.FilesystemHandler
	pamStoreHandler   pam.PamStoreHandler
	dsmStoreHandler   dsm.DsmStoreHandler
}

func (m *BootstrapManager) SetupRuntime() error {
	// 1. create state directories
	if err := m.setupStateDirectories(); err != nil {
		return err
	}

	// 2. create nginx site directories
	if err := m.setupSiteDirectories(); err != nil {
		return err
	}

	// 3. setup PAM (Port Assignment Map)
	if err := m.setupPam(); err != nil {
		return err
	}

	// 4. setup DSM (Deploy State Map)
	if err := m.setupDsm(); err != nil {
		return err
	}

	return nil
}

func (m *BootstrapManager) setupStateDirectories() error {
	dirs := []string{
		utils.StateDir(m.settings.Root),
		utils.AuditLogDir(m.settings.Root),
	}
	for _, dir := range dirs {
		if err := m.filesystemHandler.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (m *BootstrapManager) setupSiteDirectories() error {
	dirs := []string{
		m.settings.SitesAvailableDir,
		m.settings.SitesEnabledDir,
	}
	for _, dir := range dirs {
		if err := m.filesystemHandler.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (m *BootstrapManager) setupPam() error {
	return m.pamStoreHandler.SetPortMap()
}

func (m *BootstrapManager) setupDsm() error {
	return m.dsmStoreHandler.SetDeployState()
}
