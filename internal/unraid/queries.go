package unraid

const diskFields = `id idx name device size status rotational temp numReads numWrites numErrors fsSize fsFree fsUsed exportable type warning critical fsType comment format transport color`

// HealthQuery fetches everything the health report needs in one round-trip.
const HealthQuery = `
query ComprehensiveHealthCheck {
  info {
    machineId
    time
    versions { core { unraid } }
    os { uptime }
  }
  array {
    state
    parities { status warning critical }
    disks { status warning critical }
    caches { status warning critical }
  }
  notifications {
    overview {
      unread { alert warning total }
    }
  }
  docker {
    containers(skipCache: true) {
      id
      state
      status
    }
  }
}`

const SystemInfoQuery = `
query GetSystemInfo {
  info {
    os { platform distro release codename kernel arch hostname fqdn uefi serial build uptime }
    cpu { manufacturer brand vendor family model threads cores processors socket }
    memory {
      layout { bank type clockSpeed formFactor manufacturer partNum serialNum size }
    }
    baseboard { manufacturer model version serial assetTag }
    system { manufacturer model version serial uuid sku }
    versions {
      core { unraid api kernel }
      packages { openssl node npm pm2 git nginx php docker }
    }
    machineId
    time
  }
}`

const ArrayStatusQuery = `
query GetArrayStatus {
  array {
    id
    state
    capacity {
      kilobytes { free used total }
      disks { free used total }
    }
    boot { ` + diskFields + ` }
    parities { ` + diskFields + ` }
    disks { ` + diskFields + ` }
    caches { ` + diskFields + ` }
  }
}`

const NetworkConfigQuery = `
query GetNetworkConfig {
  network {
    id
    accessUrls { type name ipv4 ipv6 }
  }
}`

const RegistrationQuery = `
query GetRegistrationInfo {
  registration {
    id
    type
    keyFile { location contents }
    state
    expiration
    updateExpiration
  }
}`

const ConnectSettingsQuery = `
query GetConnectSettingsForm {
  settings {
    unified {
      values
    }
  }
}`

// VariablesQuery selects the vars fields that decode reliably; several
// counters in the full type overflow Int or report NaN.
const VariablesQuery = `
query GetSelectiveUnraidVariables {
  vars {
    id
    version
    name
    timeZone
    comment
    security
    workgroup
    domain
    domainShort
    hideDotFiles
    localMaster
    enableFruit
    useNtp
    domainLogin
    sysModel
    sysFlashSlots
    useSsl
    port
    portssl
    localTld
    bindMgt
    useTelnet
    porttelnet
    useSsh
    portssh
    startPage
    startArray
    shutdownTimeout
    shareSmbEnabled
    shareNfsEnabled
    shareAfpEnabled
    shareCacheEnabled
    shareAvahiEnabled
    safeMode
    startMode
    configValid
    configError
    joinStatus
    deviceCount
    flashGuid
    flashProduct
    flashVendor
    mdState
    mdVersion
    shareCount
    shareSmbCount
    shareNfsCount
    shareAfpCount
    shareMoverActive
    csrfToken
  }
}`

const RcloneRemotesQuery = `
query ListRCloneRemotes {
  rclone {
    remotes {
      name
      type
      parameters
      config
    }
  }
}`

const RcloneConfigFormQuery = `
query GetRCloneConfigForm($formOptions: RCloneConfigFormInput) {
  rclone {
    configForm(formOptions: $formOptions) {
      id
      dataSchema
      uiSchema
    }
  }
}`

const CreateRcloneRemoteMutation = `
mutation CreateRCloneRemote($input: CreateRCloneRemoteInput!) {
  rclone {
    createRCloneRemote(input: $input) {
      name
      type
      parameters
    }
  }
}`

const DeleteRcloneRemoteMutation = `
mutation DeleteRCloneRemote($input: DeleteRCloneRemoteInput!) {
  rclone {
    deleteRCloneRemote(input: $input)
  }
}`
